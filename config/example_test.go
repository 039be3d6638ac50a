package config_test

import (
	"fmt"
	"log"

	"github.com/c360/marinestreams/config"
)

// ExampleLoader_Load layers a production override on top of a YAML base file.
func ExampleLoader_Load() {
	loader := config.NewLoader()
	loader.AddLayer("testdata/base.yaml")
	loader.AddLayer("testdata/production.json")

	cfg, err := loader.Load()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(cfg.Platform.Name, cfg.Platform.Environment, cfg.NATS.Enabled())
	// Output: Aurora prod true
}
