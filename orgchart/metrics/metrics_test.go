package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

var (
	_ orgchart.OracleObserver = (*Recorder)(nil)
	_ orgchart.StageObserver  = (*Recorder)(nil)
)

func TestRecorder_Counts(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveOracleCall("gsk", orgchart.OutcomeOK, 2*time.Second)
	r.ObserveOracleCall("gsk", orgchart.OutcomeOK, 3*time.Second)
	r.ObserveOracleCall("gsk", orgchart.OutcomeParseError, time.Second)
	r.ObserveStage("gsk", "quality", 12)
	r.ObserveStage("gsk", "quality", 3)
	r.ObserveRun("gsk", "succeeded")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.OracleCalls.WithLabelValues("gsk", orgchart.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.OracleCalls.WithLabelValues("gsk", orgchart.OutcomeParseError)))
	assert.Equal(t, 15.0, testutil.ToFloat64(r.Entities.WithLabelValues("gsk", "quality")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("gsk", "succeeded")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.OracleDuration))
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	t.Parallel()

	a, b := NewRecorder(), NewRecorder()
	a.ObserveStage("gsk", "raw", 5)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Entities.WithLabelValues("gsk", "raw")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveStage("roche", "consolidated", 7)
	path := filepath.Join(t.TempDir(), "orgchart.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `orgchart_entities_total{company="roche",stage="consolidated"} 7`), "got:\n%s", b)
}
