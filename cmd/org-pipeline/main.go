package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, args := range plan(cfg) {
		if err := runGo(ctx, args...); err != nil {
			os.Exit(1)
		}
	}
}

// plan returns the `go run` argument lists for the selected stages, in order.
func plan(cfg Config) [][]string {
	stages := allStages
	if cfg.OnlyStage != "" {
		stages = []string{strings.ToLower(strings.TrimSpace(cfg.OnlyStage))}
	} else if cfg.FromStage != "" {
		stages = stagesFrom(stages, cfg.FromStage)
	}

	scope := []string{"-company", cfg.Company}
	if cfg.All {
		scope = []string{"-all"}
	}
	common := []string{fmt.Sprintf("-pretty=%t", cfg.Pretty)}
	if cfg.ConfigPath != "" {
		common = append(common, "-config", cfg.ConfigPath)
	}

	var out [][]string
	for _, stage := range stages {
		switch stage {
		case "consolidate":
			args := []string{
				"run", "./cmd/consolidate-hierarchy",
				"-extractions", cfg.ExtractionsDir,
				"-out", cfg.OutputDir,
				"-provider", cfg.Provider,
			}
			args = append(args, scope...)
			args = append(args, common...)
			if cfg.Model != "" {
				args = append(args, "-model", cfg.Model)
			}
			if cfg.DryRun {
				args = append(args, "-dry-run")
			}
			if cfg.Report {
				args = append(args, "-report")
			}
			if cfg.LedgerPath != "" {
				args = append(args, "-ledger", cfg.LedgerPath)
			}
			out = append(out, args)
		case "integrate":
			args := []string{
				"run", "./cmd/integrate-viewer",
				"-out", cfg.OutputDir,
				"-export-dir", cfg.ExportDir,
			}
			args = append(args, scope...)
			args = append(args, common...)
			if cfg.DryRun {
				args = append(args, "-preview")
			}
			out = append(out, args)
		}
	}
	return out
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.Company, "company", cfg.Company, "Single company to process (e.g. gsk)")
	fs.BoolVar(&cfg.All, "all", cfg.All, "Process every configured company")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Print stage counts and preview the export without writing")
	fs.StringVar(&cfg.ExtractionsDir, "extractions", cfg.ExtractionsDir, "Directory holding <company>/entities_llm_v2.json")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Consolidation output directory")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Viewer data directory")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Oracle provider: anthropic|openai")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model override for the consolidate stage")
	fs.BoolVar(&cfg.Report, "report", cfg.Report, "Write per-company consolidation reports")
	fs.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "SQLite run ledger path (empty disables)")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Optional settings file passed to every stage")
	fs.StringVar(&cfg.FromStage, "from-stage", "", "Start at stage: consolidate|integrate")
	fs.StringVar(&cfg.OnlyStage, "only-stage", "", "Run only one stage: consolidate|integrate")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print JSON outputs")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/org-pipeline -all -report")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.ExtractionsDir = filepath.Clean(cfg.ExtractionsDir)
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	cfg.ExportDir = filepath.Clean(cfg.ExportDir)
	if cfg.LedgerPath != "" {
		cfg.LedgerPath = filepath.Clean(cfg.LedgerPath)
	}
	return cfg, nil
}

func runGo(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "command failed:", "go "+strings.Join(args, " "))
		fmt.Fprintln(os.Stderr, "error:", err.Error())
		return err
	}
	fmt.Fprintln(os.Stdout, "ok:", "go "+strings.Join(args, " "), "(", time.Since(start).Round(time.Millisecond).String()+")")
	return nil
}

func stagesFrom(stages []string, from string) []string {
	from = strings.ToLower(strings.TrimSpace(from))
	for i, s := range stages {
		if s == from {
			return stages[i:]
		}
	}
	return stages
}
