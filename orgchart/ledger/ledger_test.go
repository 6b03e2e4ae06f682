package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_BeginFinishGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := openTest(t)
	start := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Begin(ctx, "run-1", "gsk", start))
	r, err := l.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, r.Status)
	assert.Equal(t, "2025-02-01T12:00:00Z", r.StartedAt)
	assert.Equal(t, "", r.FinishedAt)

	stats := orgchart.RunStats{RawExtractions: 40, QualityFiltered: 12, FinalConsolidated: 9, WithHierarchy: 4, Batches: 1}
	require.NoError(t, l.Finish(ctx, "run-1", StatusSucceeded, stats, "", start.Add(time.Minute)))

	r, err = l.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, "2025-02-01T12:01:00Z", r.FinishedAt)
	assert.Equal(t, 40, r.RawExtractions)
	assert.Equal(t, 9, r.FinalConsolidated)
	assert.Equal(t, 4, r.WithHierarchy)
}

func TestLedger_FinishUnknown(t *testing.T) {
	t.Parallel()

	l := openTest(t)
	err := l.Finish(context.Background(), "nope", StatusFailed, orgchart.RunStats{}, "boom", time.Now())
	assert.True(t, errors.Is(err, ErrUnknownRun), "err=%v", err)

	_, err = l.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestLedger_DuplicateRunID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := openTest(t)
	now := time.Now()
	require.NoError(t, l.Begin(ctx, "run-1", "gsk", now))
	assert.Error(t, l.Begin(ctx, "run-1", "gsk", now))
}

func TestLedger_Recent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := openTest(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, l.Begin(ctx, "a", "gsk", base))
	require.NoError(t, l.Begin(ctx, "b", "roche", base.Add(time.Hour)))
	require.NoError(t, l.Begin(ctx, "c", "gsk", base.Add(2*time.Hour)))
	require.NoError(t, l.Finish(ctx, "c", StatusFailed, orgchart.RunStats{}, "oracle down", base.Add(3*time.Hour)))

	gsk, err := l.Recent(ctx, "gsk", 10)
	require.NoError(t, err)
	require.Len(t, gsk, 2)
	assert.Equal(t, "c", gsk[0].RunID)
	assert.Equal(t, "oracle down", gsk[0].Error)
	assert.Equal(t, "a", gsk[1].RunID)

	all, err := l.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"c", "b"}, []string{all[0].RunID, all[1].RunID})

	none, err := l.Recent(ctx, "lilly", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
