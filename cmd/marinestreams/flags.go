package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPaths     []string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	HealthInterval  time.Duration
	ShowVersion     bool
	Validate        bool

	IssueToken  string
	TokenPerms  string
	TokenTTL    time.Duration
	PrintConfig bool
}

// layerList collects repeated -config flags.
type layerList []string

func (l *layerList) String() string { return strings.Join(*l, ",") }

func (l *layerList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var layers layerList
	fs.Var(&layers, "config",
		"Configuration file, JSON or YAML; repeat to layer (env: MARINESTREAMS_CONFIG, comma-separated)")
	fs.Var(&layers, "c", "Shorthand for -config")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MARINESTREAMS_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: MARINESTREAMS_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MARINESTREAMS_LOG_FORMAT", "json"),
		"Log format: json, text (env: MARINESTREAMS_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("MARINESTREAMS_DEBUG", false),
		"Enable debug mode (env: MARINESTREAMS_DEBUG)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("MARINESTREAMS_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: MARINESTREAMS_SHUTDOWN_TIMEOUT)")

	fs.DurationVar(&cfg.HealthInterval, "health-interval",
		getEnvDuration("MARINESTREAMS_HEALTH_INTERVAL", 10*time.Second),
		"Health probe interval (env: MARINESTREAMS_HEALTH_INTERVAL)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")
	fs.BoolVar(&cfg.PrintConfig, "print-config", false, "Print the effective configuration, secrets redacted, and exit")

	fs.StringVar(&cfg.IssueToken, "issue-token", "", "Print a bearer token for this subject and exit")
	fs.StringVar(&cfg.TokenPerms, "token-perms", "alerts,streams", "Comma-separated permissions for -issue-token")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", 24*time.Hour, "Lifetime of the token printed by -issue-token")

	fs.Usage = func() { printDetailedHelp(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.ConfigPaths = layers
	if len(cfg.ConfigPaths) == 0 {
		if env := getEnv("MARINESTREAMS_CONFIG", ""); env != "" {
			cfg.ConfigPaths = strings.Split(env, ",")
		}
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}

	for _, path := range cfg.ConfigPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file not found: %s", path)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	if cfg.HealthInterval <= 0 {
		return fmt.Errorf("invalid health interval: %s", cfg.HealthInterval)
	}

	if cfg.IssueToken != "" && cfg.TokenTTL <= 0 {
		return fmt.Errorf("invalid token ttl: %s", cfg.TokenTTL)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	out := fs.Output()
	_, _ = fmt.Fprintf(out, `%s - Marine sensor data hub

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(out, `
Examples:
  # Run with a base file and a production override
  %s -config=/etc/marinestreams/base.yaml -config=/etc/marinestreams/prod.json

  # Run with debug logging
  %s -log-level=debug -log-format=text

  # Mint a token for a chartplotter allowed to manage alerts
  MARINESTREAMS_JWT_SECRET=... %s -issue-token=helm -token-perms=alerts

  # Validate configuration only
  %s -config=config.yaml -validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
