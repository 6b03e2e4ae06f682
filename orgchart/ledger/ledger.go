// Package ledger keeps one SQLite row per company consolidation run.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrUnknownRun is returned by Finish for a run id that was never begun.
var ErrUnknownRun = errors.New("unknown run")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id             TEXT PRIMARY KEY,
	company            TEXT NOT NULL,
	started_at         TEXT NOT NULL,
	finished_at        TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'running',
	raw_extractions    INTEGER NOT NULL DEFAULT 0,
	quality_filtered   INTEGER NOT NULL DEFAULT 0,
	final_consolidated INTEGER NOT NULL DEFAULT 0,
	with_hierarchy     INTEGER NOT NULL DEFAULT 0,
	batches            INTEGER NOT NULL DEFAULT 0,
	failed_batches     INTEGER NOT NULL DEFAULT 0,
	error              TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_company_started ON runs(company, started_at);
`

// Run is one row of the ledger.
type Run struct {
	RunID             string `db:"run_id"`
	Company           string `db:"company"`
	StartedAt         string `db:"started_at"`
	FinishedAt        string `db:"finished_at"`
	Status            string `db:"status"`
	RawExtractions    int    `db:"raw_extractions"`
	QualityFiltered   int    `db:"quality_filtered"`
	FinalConsolidated int    `db:"final_consolidated"`
	WithHierarchy     int    `db:"with_hierarchy"`
	Batches           int    `db:"batches"`
	FailedBatches     int    `db:"failed_batches"`
	Error             string `db:"error"`
}

type Ledger struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Begin records a run as started.
func (l *Ledger) Begin(ctx context.Context, runID, company string, startedAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, company, started_at, status) VALUES (?, ?, ?, ?)`,
		runID, company, startedAt.UTC().Format(time.RFC3339), StatusRunning)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// Finish stores the outcome of a run.
func (l *Ledger) Finish(ctx context.Context, runID, status string, stats orgchart.RunStats, errMsg string, finishedAt time.Time) error {
	res, err := l.db.NamedExecContext(ctx, `
UPDATE runs SET
	finished_at = :finished_at,
	status = :status,
	raw_extractions = :raw_extractions,
	quality_filtered = :quality_filtered,
	final_consolidated = :final_consolidated,
	with_hierarchy = :with_hierarchy,
	batches = :batches,
	failed_batches = :failed_batches,
	error = :error
WHERE run_id = :run_id`, Run{
		RunID:             runID,
		FinishedAt:        finishedAt.UTC().Format(time.RFC3339),
		Status:            status,
		RawExtractions:    stats.RawExtractions,
		QualityFiltered:   stats.QualityFiltered,
		FinalConsolidated: stats.FinalConsolidated,
		WithHierarchy:     stats.WithHierarchy,
		Batches:           stats.Batches,
		FailedBatches:     stats.FailedBatches,
		Error:             errMsg,
	})
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrUnknownRun)
	}
	return nil
}

// Get returns a single run.
func (l *Ledger) Get(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := l.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE run_id = ?`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrUnknownRun
	}
	return r, err
}

// Recent returns up to limit runs for company, newest first. An empty company lists all.
func (l *Ledger) Recent(ctx context.Context, company string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []Run{}
	var err error
	if company == "" {
		err = l.db.SelectContext(ctx, &runs,
			`SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	} else {
		err = l.db.SelectContext(ctx, &runs,
			`SELECT * FROM runs WHERE company = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`, company, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
