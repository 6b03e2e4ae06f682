package main

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

type Config struct {
	Company string
	All     bool
	DryRun  bool

	ExtractionsDir string
	OutputDir      string

	Provider       string
	Model          string
	APIKey         string
	MaxTokens      int64
	BatchSize      int
	RateLimitDelay time.Duration
	Retries        int

	MinMentions   int
	AliasPreMerge bool
	CrossBatch    bool
	NoAliases     bool

	LedgerPath  string
	MetricsFile string
	Report      bool

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
	if c.ExtractionsDir == "" {
		return errors.New("missing -extractions")
	}
	if c.OutputDir == "" {
		return errors.New("missing -out")
	}
	switch c.Provider {
	case "anthropic", "openai":
	default:
		return errors.New("provider must be anthropic or openai")
	}
	if c.MaxTokens <= 0 {
		return errors.New("max-tokens must be > 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch-size must be > 0")
	}
	if c.RateLimitDelay < 0 {
		return errors.New("rate-limit-delay must be >= 0")
	}
	if c.Retries < 0 {
		return errors.New("retries must be >= 0")
	}
	if c.MinMentions < 1 {
		return errors.New("min-mentions must be >= 1")
	}
	return nil
}

// companies resolves -company / -all against the configured account list.
func (c Config) companies(all []string) []string {
	if c.All {
		return all
	}
	return []string{strings.ToLower(strings.TrimSpace(c.Company))}
}

func defaultConfig() Config {
	return Config{
		ExtractionsDir: "extractions",
		OutputDir:      "output",
		Provider:       "anthropic",
		MaxTokens:      orgchart.DefaultMaxTokens,
		BatchSize:      orgchart.DefaultBatchSize,
		RateLimitDelay: 2 * time.Second,
		MinMentions:    1,
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
