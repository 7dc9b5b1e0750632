package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath   string // device configuration: .json, .yaml, .yml or .hcl
	ProfilesPath string // extra *.hcl MCU profiles, optional
	OutPath      string // report file; empty writes to the app's output

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
