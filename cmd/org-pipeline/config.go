package main

import (
	"errors"
	"fmt"
	"strings"
)

var allStages = []string{"consolidate", "integrate"}

type Config struct {
	Company string
	All     bool
	DryRun  bool

	ExtractionsDir string
	OutputDir      string
	ExportDir      string

	Provider   string
	Model      string
	Report     bool
	LedgerPath string
	ConfigPath string

	FromStage string
	OnlyStage string

	Pretty bool
}

func (c Config) Validate() error {
	if c.Company == "" && !c.All {
		return errors.New("missing -company or -all")
	}
	if c.Company != "" && c.All {
		return errors.New("use only one of -company or -all")
	}
	if c.OnlyStage != "" && c.FromStage != "" {
		return errors.New("use only one of -only-stage or -from-stage")
	}
	for _, s := range []string{c.OnlyStage, c.FromStage} {
		if s != "" && !knownStage(s) {
			return fmt.Errorf("unknown stage %q (want %s)", s, strings.Join(allStages, "|"))
		}
	}
	return nil
}

func knownStage(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, known := range allStages {
		if s == known {
			return true
		}
	}
	return false
}

func defaultConfig() Config {
	return Config{
		ExtractionsDir: "extractions",
		OutputDir:      "output",
		ExportDir:      "viewer/public/data",
		Provider:       "anthropic",
		Pretty:         true,
	}
}
