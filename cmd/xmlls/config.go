package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/xmlserver"
)

// fileConfig is the content of the --config file.
//
//	debounce = "400ms"
//	cacheTTL = "5m"
//	workers = 4
//	watchSchemas = true
//
//	[[schemaLocators]]
//	rootElement = true
//	searchPaths = ["xsd"]
type fileConfig struct {
	Debounce       string                   `toml:"debounce"`
	CacheTTL       string                   `toml:"cacheTTL"`
	Workers        int                      `toml:"workers"`
	WatchSchemas   bool                     `toml:"watchSchemas"`
	SchemaLocators []map[string]interface{} `toml:"schemaLocators"`
}

func readConfigFile(path string) (fileConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("failed to read the configuration file: %w", err)
	}
	return parseConfig(content)
}

func parseConfig(content []byte) (fileConfig, error) {
	var config fileConfig

	decoder := toml.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&config); err != nil {
		return fileConfig{}, fmt.Errorf("invalid configuration file: %w", err)
	}
	return config, nil
}

// apply sets the fields of opts that are present in the configuration.
func (c fileConfig) apply(opts *xmlserver.Options) error {
	if c.Debounce != "" {
		d, err := parsePositiveDuration("debounce", c.Debounce)
		if err != nil {
			return err
		}
		opts.DebounceDelay = d
	}

	if c.CacheTTL != "" {
		d, err := parsePositiveDuration("cacheTTL", c.CacheTTL)
		if err != nil {
			return err
		}
		opts.CacheTTL = d
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers should be positive")
	}
	opts.Workers = c.Workers
	opts.WatchSchemas = c.WatchSchemas

	if c.SchemaLocators != nil {
		list := make([]interface{}, len(c.SchemaLocators))
		for i, entry := range c.SchemaLocators {
			list[i] = entry
		}
		locators, err := locator.ParseLocators(list)
		if err != nil {
			return err
		}
		opts.DefaultLocators = locators
	}
	return nil
}

func parsePositiveDuration(name string, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s should be positive", name)
	}
	return d, nil
}
