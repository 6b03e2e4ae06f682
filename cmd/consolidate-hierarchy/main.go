package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/aliasstore"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/ledger"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/logging"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/metrics"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/provider"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/settings"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	st, err := settings.Load(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	companies := cfg.companies(st.Companies)
	pipeline := &orgchart.Pipeline{
		Options: orgchart.Options{MinMentions: cfg.MinMentions, AliasPreMerge: cfg.AliasPreMerge},
		Logger:  logger,
	}

	if cfg.DryRun {
		failed := 0
		for _, company := range companies {
			line, err := dryRun(ctx, pipeline, cfg.ExtractionsDir, company)
			if err != nil {
				logger.Error("dry run failed", zap.String("company", company), zap.Error(err))
				failed++
				continue
			}
			fmt.Fprintln(os.Stdout, line)
		}
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	oracle, err := newOracle(cfg, st)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.NewRecorder()
		pipeline.Observer = rec
	}
	pipeline.Consolidator = &orgchart.Consolidator{
		Oracle:                 oracle,
		SystemPrompt:           consolidationSystemPrompt,
		CrossBatchSystemPrompt: crossBatchSystemPrompt,
		BatchSize:              cfg.BatchSize,
		MaxTokens:              cfg.MaxTokens,
		Delay:                  cfg.RateLimitDelay,
		CrossBatch:             cfg.CrossBatch,
		Logger:                 logger,
	}
	if rec != nil {
		pipeline.Consolidator.Observer = rec
	}
	if !cfg.NoAliases {
		pipeline.Aliases = aliasstore.NewClient(st.ViewerBaseURL, st.BypassSecret)
	}

	r := &runner{
		cfg:      cfg,
		pipeline: pipeline,
		display:  st.DisplayName,
		metrics:  rec,
		logger:   logger,
		out:      os.Stdout,
	}
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		defer func() { _ = l.Close() }()
		r.ledger = l
	}

	start := time.Now()
	failed := 0
	for i, company := range companies {
		if i > 0 && cfg.RateLimitDelay > 0 {
			if err := sleepCtx(ctx, cfg.RateLimitDelay); err != nil {
				break
			}
		}
		if err := r.runCompany(ctx, company); err != nil {
			logger.Error("company failed", zap.String("company", company), zap.Error(err))
			failed++
			if ctx.Err() != nil {
				break
			}
		}
		fmt.Fprintf(os.Stderr, "progress consolidate-hierarchy: %d/%d companies (last=%s elapsed=%s)\n",
			i+1, len(companies), company, time.Since(start).Round(time.Second))
	}

	if rec != nil {
		if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("metrics write failed", zap.Error(err))
		}
	}

	fmt.Fprintf(os.Stdout, "companies=%d failed=%d out_dir=%s\n", len(companies), failed, cfg.OutputDir)
	if failed > 0 || ctx.Err() != nil {
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.Company, "company", cfg.Company, "Single company to process (e.g. gsk)")
	fs.BoolVar(&cfg.All, "all", cfg.All, "Process every configured company")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Skip oracle calls, just print stage counts")
	fs.StringVar(&cfg.ExtractionsDir, "extractions", cfg.ExtractionsDir, "Directory holding <company>/"+orgchart.ExtractionFileName)
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Output directory (one subdirectory per company)")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Oracle provider: anthropic|openai")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model override (defaults per provider)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (overrides ANTHROPIC_API_KEY / OPENAI_API_KEY)")
	fs.Int64Var(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, "Max output tokens per batch call")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Entities per oracle call")
	fs.DurationVar(&cfg.RateLimitDelay, "rate-limit-delay", cfg.RateLimitDelay, "Wait between oracle batches and between companies")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Retries per oracle call on rate-limit or server errors (0 disables)")
	fs.IntVar(&cfg.MinMentions, "min-mentions", cfg.MinMentions, "Minimum mentions for an entity to reach the oracle")
	fs.BoolVar(&cfg.AliasPreMerge, "alias-premerge", cfg.AliasPreMerge, "Fold entities sharing a known canonical alias before consolidation")
	fs.BoolVar(&cfg.CrossBatch, "cross-batch", cfg.CrossBatch, "Run one extra conservative dedup call across batches")
	fs.BoolVar(&cfg.NoAliases, "no-aliases", cfg.NoAliases, "Skip the alias store lookup")
	fs.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "SQLite run ledger path (empty disables)")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics to this path")
	fs.BoolVar(&cfg.Report, "report", cfg.Report, "Write consolidation_report.md and .html per company")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console|json")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Optional settings file (yaml/json/toml)")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print JSON outputs")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/consolidate-hierarchy -company gsk -report")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.ExtractionsDir = cleanPath(cfg.ExtractionsDir)
	cfg.OutputDir = cleanPath(cfg.OutputDir)
	cfg.LedgerPath = cleanPath(cfg.LedgerPath)
	cfg.MetricsFile = cleanPath(cfg.MetricsFile)
	return cfg, nil
}

func newOracle(cfg Config, st settings.Settings) (orgchart.Oracle, error) {
	model := cfg.Model
	if model == "" {
		model = st.Model
	}
	retry := provider.NoRetry()
	if cfg.Retries > 0 {
		retry = provider.DefaultRetryPolicy()
		retry.MaxAttempts = cfg.Retries + 1
	}
	key := cfg.APIKey
	if key == "" {
		var err error
		if key, err = st.RequireKey(cfg.Provider); err != nil {
			return nil, fmt.Errorf("%w (or pass -api-key)", err)
		}
	}
	switch cfg.Provider {
	case "openai":
		return provider.NewOpenAIOracle(key, model, retry)
	default:
		return provider.NewAnthropicOracle(key, model, retry)
	}
}

func dryRun(ctx context.Context, p *orgchart.Pipeline, extractionsDir, company string) (string, error) {
	set, err := orgchart.LoadExtractions(ctx, orgchart.ExtractionPath(extractionsDir, company))
	if err != nil {
		return "", err
	}
	s := p.DryRun(set)
	return fmt.Sprintf("%s: %d raw → %d aggregated → %d quality", company, s.Raw, s.Aggregated, s.Quality), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
