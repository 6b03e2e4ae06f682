package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/fileutils"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/logging"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/settings"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/viewer"
)

const consolidatedFileName = "consolidated_with_hierarchy.json"

var errNoConsolidation = errors.New("no consolidated output")

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

	in := &integrator{cfg: cfg, display: st.DisplayName, logger: logger, out: os.Stdout}
	sum, err := in.run(ctx, cfg.companies(st.Companies), time.Now())
	if err != nil {
		logger.Error("integrate failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "companies=%d skipped=%d failed=%d context=%d/%d export_dir=%s\n",
		sum.Companies, sum.Skipped, sum.Failed, sum.ContextMatched, sum.ContextTotal, cfg.ExportDir)
	if sum.Failed > 0 {
		os.Exit(1)
	}
}

type summary struct {
	Companies      int
	Skipped        int
	Failed         int
	ContextMatched int
	ContextTotal   int
	Files          []string
}

// integrator turns consolidated runs and manual maps into the viewer's data files.
type integrator struct {
	cfg     Config
	display func(company string) string
	logger  *zap.Logger
	out     io.Writer
}

func (in *integrator) run(ctx context.Context, companies []string, now time.Time) (summary, error) {
	exp := viewer.NewExport(now.UTC().Format(time.RFC3339))
	sum := summary{Companies: len(companies)}
	for i, company := range companies {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		stats, err := in.company(company, exp)
		switch {
		case errors.Is(err, errNoConsolidation):
			in.logger.Warn("no consolidated output, skipping", zap.String("company", company))
			sum.Skipped++
		case err != nil:
			in.logger.Error("company failed", zap.String("company", company), zap.Error(err))
			sum.Failed++
		}
		sum.ContextMatched += stats.Matched
		sum.ContextTotal += stats.Total
		fmt.Fprintf(os.Stderr, "progress integrate-viewer: %d/%d companies (last=%s)\n", i+1, len(companies), company)
	}

	if in.cfg.Preview {
		in.preview(exp)
		return sum, nil
	}
	files, err := exp.Write(in.cfg.ExportDir, in.cfg.Pretty)
	sum.Files = files
	if err != nil {
		return sum, fmt.Errorf("write export: %w", err)
	}
	return sum, nil
}

// company adds one company's entries to exp. Manual data is exported even when there is no
// consolidated run yet; in that case errNoConsolidation is still returned.
func (in *integrator) company(company string, exp *viewer.Export) (viewer.ContextStats, error) {
	slug := orgchart.CompanySlug(company)
	display := company
	if in.display != nil {
		display = in.display(company)
	}
	logger := in.logger.With(zap.String("company", company))

	manual, err := viewer.LoadManualMap(in.cfg.ManualDir, slug, logger)
	if err != nil {
		return viewer.ContextStats{}, err
	}

	var run orgchart.RunOutput
	err = fileutils.ReadJSONFile(filepath.Join(in.cfg.OutputDir, slug, consolidatedFileName), &run)
	if errors.Is(err, fs.ErrNotExist) {
		if manual != nil {
			exp.Manual[slug] = viewer.ConvertManualMap(display, manual, nil)
		}
		return viewer.ContextStats{}, errNoConsolidation
	}
	if err != nil {
		return viewer.ContextStats{}, fmt.Errorf("read consolidated output: %w", err)
	}

	auto := viewer.BuildAutoMap(run, display)
	if !in.cfg.Preview {
		if err := fileutils.WriteJSONFileAtomic(filepath.Join(in.cfg.OutputDir, slug, viewer.AutoMapFile), auto, in.cfg.Pretty); err != nil {
			return viewer.ContextStats{}, fmt.Errorf("write auto map: %w", err)
		}
	}

	transcripts, err := viewer.LoadTranscripts(filepath.Join(in.cfg.TranscriptsDir, slug))
	if err != nil {
		return viewer.ContextStats{}, err
	}
	data, ctxStats := viewer.ConvertAutoMap(display, auto, manual, transcripts)
	exp.Data[slug] = data
	if ctxStats.Total > 0 {
		logger.Info("context added",
			zap.Int("matched", ctxStats.Matched),
			zap.Int("total", ctxStats.Total),
			zap.Int("percent", ctxStats.Percent()),
		)
	}
	if !in.cfg.Preview {
		if err := viewer.WriteContextFailures(filepath.Join(in.cfg.OutputDir, slug, viewer.FailuresFile), ctxStats, in.cfg.Pretty); err != nil {
			return ctxStats, fmt.Errorf("write context failures: %w", err)
		}
	}

	if manual != nil {
		exp.Manual[slug] = viewer.ConvertManualMap(display, manual, &auto)
	}

	llm, err := viewer.LoadLLMMatches(in.cfg.matchesDir(), slug)
	if err != nil {
		logger.Warn("ignoring llm matches", zap.Error(err))
	}
	if review, ok := viewer.BuildMatchReview(slug, auto, manual, llm); ok {
		exp.MatchReview.Companies[slug] = review
	}
	return ctxStats, nil
}

func (in *integrator) preview(exp *viewer.Export) {
	for company, d := range exp.Data {
		fmt.Fprintf(in.out, "data %s: entities=%d snippets=%d calls=%d\n", company, d.Stats.Entities, d.Stats.Snippets, d.Stats.Calls)
	}
	for company, m := range exp.Manual {
		fmt.Fprintf(in.out, "manual %s: entities=%d matched=%d snippets=%d\n", company, m.Stats.Entities, m.Stats.Matched, m.Stats.Snippets)
	}
	for company, r := range exp.MatchReview.Companies {
		fmt.Fprintf(in.out, "review %s: unmatched=%d with_suggestions=%d\n", company, r.TotalUnmatched, r.TotalWithSuggestions)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.Company, "company", cfg.Company, "Single company to integrate (e.g. gsk)")
	fs.BoolVar(&cfg.All, "all", cfg.All, "Integrate every configured company")
	fs.BoolVar(&cfg.Preview, "preview", cfg.Preview, "Print what would be exported without writing files")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Consolidation output directory (one subdirectory per company)")
	fs.StringVar(&cfg.ManualDir, "manual-dir", cfg.ManualDir, "Directory holding curated <company>_rd_map*.json files")
	fs.StringVar(&cfg.MatchesDir, "matches-dir", cfg.MatchesDir, "Directory holding <company>_llm_matches.json (defaults to -manual-dir)")
	fs.StringVar(&cfg.TranscriptsDir, "transcripts-dir", cfg.TranscriptsDir, "Directory holding <company>/batch_*.json transcripts")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Directory for viewer_data.json and friends")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console|json")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Optional settings file (yaml/json/toml)")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print JSON outputs")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/integrate-viewer -all -export-dir viewer/public/data")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.OutputDir = cleanPath(cfg.OutputDir)
	cfg.ManualDir = cleanPath(cfg.ManualDir)
	cfg.MatchesDir = cleanPath(cfg.MatchesDir)
	cfg.TranscriptsDir = cleanPath(cfg.TranscriptsDir)
	cfg.ExportDir = cleanPath(cfg.ExportDir)
	return cfg, nil
}
