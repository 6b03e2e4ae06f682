package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/fileutils"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/ledger"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/metrics"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/report"
)

// Output file names inside output/<company>/.
const (
	consolidatedFileName = "consolidated_with_hierarchy.json"
	aliasMatchesFileName = "alias_matches.json"
	reportFileName       = "consolidation_report"
	lockFileName         = ".consolidate.lock"
)

var errLocked = errors.New("output is locked by another run")

// runner consolidates and persists one company at a time.
type runner struct {
	cfg      Config
	pipeline *orgchart.Pipeline
	ledger   *ledger.Ledger
	metrics  *metrics.Recorder
	display  func(company string) string
	logger   *zap.Logger
	out      io.Writer
	newRunID func() string
	now      func() time.Time
}

func (r *runner) runCompany(ctx context.Context, company string) (err error) {
	dir := filepath.Join(r.cfg.OutputDir, orgchart.CompanySlug(company))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &orgchart.StageError{Company: company, Stage: orgchart.StageWrite, Err: err}
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return &orgchart.StageError{Company: company, Stage: orgchart.StageWrite, Err: fmt.Errorf("lock: %w", err)}
	}
	if !locked {
		return &orgchart.StageError{Company: company, Stage: orgchart.StageWrite, Err: errLocked}
	}
	defer func() { _ = lock.Unlock() }()

	runID := r.runID()
	p := *r.pipeline
	p.NewRunID = func() string { return runID }
	if r.now != nil {
		p.Now = r.now
	}

	if r.ledger != nil {
		if err := r.ledger.Begin(ctx, runID, company, r.clock()); err != nil {
			return err
		}
	}
	var stats orgchart.RunStats
	defer func() {
		status := ledger.StatusSucceeded
		msg := ""
		if err != nil {
			status = ledger.StatusFailed
			msg = err.Error()
		}
		if r.metrics != nil {
			r.metrics.ObserveRun(company, status)
		}
		if r.ledger != nil {
			// The run's own context may already be canceled.
			if lerr := r.ledger.Finish(context.Background(), runID, status, stats, msg, r.clock()); lerr != nil {
				r.logger.Warn("ledger finish failed", zap.String("company", company), zap.Error(lerr))
			}
		}
	}()

	set, err := orgchart.LoadExtractions(ctx, orgchart.ExtractionPath(r.cfg.ExtractionsDir, company))
	if err != nil {
		return &orgchart.StageError{Company: company, Stage: orgchart.StageLoad, Err: err}
	}

	out, aliases, err := p.Run(ctx, company, set)
	if err != nil {
		return err
	}
	stats = out.Stats

	outPath := filepath.Join(dir, consolidatedFileName)
	if err := fileutils.WriteJSONFileAtomic(outPath, out, r.cfg.Pretty); err != nil {
		return &orgchart.StageError{Company: company, Stage: orgchart.StageWrite, Err: err}
	}
	if aliases != nil {
		if err := fileutils.WriteJSONFileAtomic(filepath.Join(dir, aliasMatchesFileName), aliases, true); err != nil {
			return &orgchart.StageError{Company: company, Stage: orgchart.StageWrite, Err: err}
		}
	}
	if r.cfg.Report {
		if err := r.writeReport(dir, company, out, aliases); err != nil {
			return &orgchart.StageError{Company: company, Stage: orgchart.StageWrite, Err: err}
		}
	}

	s := out.Stats
	fmt.Fprintf(r.out, "company=%s run_id=%s raw=%d aggregated=%d quality=%d final=%d with_hierarchy=%d batches=%d failed_batches=%d alias_matches=%d out=%s\n",
		company, runID, s.RawExtractions, s.PreAggregated, s.QualityFiltered, s.FinalConsolidated, s.WithHierarchy,
		s.Batches, s.FailedBatches, s.AliasMatches, outPath)
	return nil
}

func (r *runner) writeReport(dir, company string, out orgchart.RunOutput, aliases *orgchart.AliasReport) error {
	md := report.Markdown(out, aliases)
	if err := fileutils.WriteFileAtomicSameDir(filepath.Join(dir, reportFileName+".md"), []byte(md), 0o644); err != nil {
		return err
	}
	title := company
	if r.display != nil {
		title = r.display(company)
	}
	page, err := report.RenderHTML(title+" consolidation report", md)
	if err != nil {
		return err
	}
	return fileutils.WriteFileAtomicSameDir(filepath.Join(dir, reportFileName+".html"), page, 0o644)
}

func (r *runner) runID() string {
	if r.newRunID != nil {
		return r.newRunID()
	}
	return uuid.NewString()
}

func (r *runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}
