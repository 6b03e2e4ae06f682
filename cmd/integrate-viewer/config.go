package main

import (
	"errors"
	"path/filepath"
	"strings"
)

type Config struct {
	Company string
	All     bool
	Preview bool

	OutputDir      string
	ManualDir      string
	MatchesDir     string
	TranscriptsDir string
	ExportDir      string

	LogLevel   string
	LogFormat  string
	ConfigPath string
	Pretty     bool
}

func (c Config) Validate() error {
	if c.Company == "" && !c.All {
		return errors.New("missing -company or -all")
	}
	if c.Company != "" && c.All {
		return errors.New("use only one of -company or -all")
	}
	if c.OutputDir == "" {
		return errors.New("missing -out")
	}
	if c.ExportDir == "" && !c.Preview {
		return errors.New("missing -export-dir")
	}
	return nil
}

func (c Config) companies(all []string) []string {
	if c.All {
		return all
	}
	return []string{strings.ToLower(strings.TrimSpace(c.Company))}
}

// matchesDir defaults to the manual map directory, where the matcher writes its output.
func (c Config) matchesDir() string {
	if c.MatchesDir != "" {
		return c.MatchesDir
	}
	return c.ManualDir
}

func defaultConfig() Config {
	return Config{
		OutputDir:      "output",
		ManualDir:      "manual_maps",
		TranscriptsDir: "transcripts",
		ExportDir:      filepath.Join("viewer", "public", "data"),
		LogLevel:       "info",
		LogFormat:      "console",
		Pretty:         true,
	}
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
