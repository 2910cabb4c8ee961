// Package config loads the tool configuration file.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	// Timeouts, all in milliseconds
	ReadTimeoutMs   int `yaml:"read_timeout_ms"`
	DrainMs         int `yaml:"drain_ms"`
	BusyTimeoutMs   int `yaml:"busy_timeout_ms"`
	EnableTimeoutMs int `yaml:"enable_timeout_ms"`

	// Devices extends the built-in signature table
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig - One extra device table row
type DeviceConfig struct {
	Name      string `yaml:"name"`
	Signature string `yaml:"signature"` // six hex digits, e.g. "1E9003"
	FlashSize uint16 `yaml:"flash_size"`
	PageWords int    `yaml:"page_words"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Baud:            250000,
		ReadTimeoutMs:   3000,
		DrainMs:         300,
		BusyTimeoutMs:   100,
		EnableTimeoutMs: 100,
	}
}

// Load reads and validates a YAML configuration file. Unset fields keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
