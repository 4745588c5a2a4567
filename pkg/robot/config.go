package robot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gwillem/mazebot/pkg/nav"
)

const DefaultConfigFile = "mazebot.json"

// Config holds the robot configuration
type Config struct {
	Port        string      `json:"port"`
	BaudRate    int         `json:"baud_rate,omitempty"`
	Calibration Calibration `json:"calibration"`
	Navigation  nav.Config  `json:"navigation"`
}

// DefaultConfig returns a configuration with default tuning and no port.
func DefaultConfig() *Config {
	return &Config{
		BaudRate:   DefaultBaudRate,
		Navigation: nav.DefaultConfig(),
	}
}

// IsCalibrated returns true if the sensors have calibration data
func (c *Config) IsCalibrated() bool {
	return c.Calibration.IsCalibrated()
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Fields missing
// from the file keep their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Navigation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid navigation config: %w", err)
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
