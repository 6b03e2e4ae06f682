package main

import (
	"errors"
	"time"
)

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	LogLevel   string
	LogFormat  string
	ConfigPath string
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("missing -addr")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown-timeout must be > 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Addr:            ":3000",
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}
