// Package config loads the hub configuration.
//
// Configuration is built from defaults, then any number of JSON or YAML file
// layers, then environment variables. Layers are merged key by key with
// last-wins semantics, so an override file only needs the fields it changes:
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/marinestreams/base.yaml")
//	loader.AddLayer("/etc/marinestreams/production.json")
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Durations may be written as Go duration strings ("30s", "5m") in the
// http, nats and alerts sections.
//
// # Environment Variable Overrides
//
//	MARINESTREAMS_PLATFORM_ID       vessel identifier
//	MARINESTREAMS_PLATFORM_NAME     vessel name
//	MARINESTREAMS_HTTP_ADDR         listen address
//	MARINESTREAMS_NATS_URLS         comma-separated NATS URLs
//	MARINESTREAMS_NATS_USERNAME     NATS credentials
//	MARINESTREAMS_NATS_PASSWORD
//	MARINESTREAMS_NATS_TOKEN
//	MARINESTREAMS_SECURITY_ENABLED  true or false
//	MARINESTREAMS_JWT_SECRET        HMAC secret for bearer tokens
//
// # Security
//
// Config files are size limited (10MB), must be regular files with a .json,
// .yaml or .yml extension, and relative paths may not leave the working
// directory. JSON nesting is capped at 100 levels.
//
// Validation failures wrap errors.ErrInvalidConfig.
package config
