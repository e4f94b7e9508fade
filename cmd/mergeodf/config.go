package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the report service configuration.
type Config struct {
	Listen       string `yaml:"listen"`
	DataDir      string `yaml:"data_dir"`      // registry database + template files
	WorkDir      string `yaml:"work_dir"`      // merge session working directories
	ConverterURL string `yaml:"converter_url"` // external PDF conversion service; empty disables PDF output
	LogLevel     string `yaml:"log_level"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":9980"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// loadConfig reads a YAML config file; a missing path yields defaults.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.defaults()
	return cfg, nil
}
