package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/fileutils"
	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/viewer"
)

func TestParseFlags_Overrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("integrate-viewer", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-all",
		"-out", "data/output/",
		"-manual-dir", "maps",
		"-transcripts-dir", "tx",
		"-export-dir", "public/data",
		"-preview",
	})
	require.NoError(t, err)
	assert.True(t, cfg.All)
	assert.True(t, cfg.Preview)
	assert.Equal(t, filepath.Clean("data/output"), cfg.OutputDir)
	assert.Equal(t, "maps", cfg.matchesDir())
	assert.Equal(t, "tx", cfg.TranscriptsDir)
	assert.Equal(t, []string{"gsk", "roche"}, cfg.companies([]string{"gsk", "roche"}))
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.Error(t, defaultConfig().Validate())

	c := defaultConfig()
	c.Company = "gsk"
	require.NoError(t, c.Validate())

	c.All = true
	require.Error(t, c.Validate())

	c = defaultConfig()
	c.Company = "gsk"
	c.ExportDir = ""
	require.Error(t, c.Validate())
	c.Preview = true
	require.NoError(t, c.Validate())
}

func sp(s string) *string { return &s }

type fixture struct {
	cfg Config
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	cfg := defaultConfig()
	cfg.All = true
	cfg.OutputDir = filepath.Join(root, "output")
	cfg.ManualDir = filepath.Join(root, "maps")
	cfg.TranscriptsDir = filepath.Join(root, "transcripts")
	cfg.ExportDir = filepath.Join(root, "export")

	run := orgchart.RunOutput{
		Account: "gsk",
		RunID:   "run-1",
		Source:  orgchart.OutputSource,
		Entities: []orgchart.MergedEntity{
			{
				ID: "oncology", EntityName: "Oncology", EntityType: "therapeutic_area", MentionCount: 1, Confidence: "high",
				AllSources: []orgchart.Source{{CallID: sp("c1"), CallDate: "2024-05-02", RawQuote: "oncology is 120 people"}},
			},
			{
				ID: "vector-core", EntityName: "Vector Core", EntityType: "team", ParentEntity: sp("oncology"), MentionCount: 1,
				AllSources: []orgchart.Source{{CallID: sp("c2"), CallDate: "2024-06-01", RawQuote: "the vector core team"}},
			},
		},
	}
	require.NoError(t, fileutils.WriteJSONFileAtomic(filepath.Join(cfg.OutputDir, "gsk", consolidatedFileName), run, true))

	writeFile(t, filepath.Join(cfg.ManualDir, "gsk_rd_map.json"),
		`{"root": {"id": "root", "name": "GSK R&D", "children": [{"id": "m-onc", "name": "Oncology"}]}}`)
	writeFile(t, filepath.Join(cfg.ManualDir, "gsk_llm_matches.json"),
		`{"matches": [{"entity_name": "Vector Core", "matched_node_id": "m-vec", "matched_node_name": "Vectors", "confidence": "high"}]}`)
	writeFile(t, filepath.Join(cfg.ManualDir, "roche_rd_map.json"),
		`{"id": "root", "name": "Roche pRED", "children": []}`)
	writeFile(t, filepath.Join(cfg.TranscriptsDir, "gsk", "batch_001.json"),
		`{"calls": [{"call_id": "c1", "transcript_text": "Hello there. Oncology is 120 people today.", "call_title": "Intro"}]}`)

	return fixture{cfg: cfg}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestIntegrator_Run(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := &integrator{cfg: f.cfg, logger: zaptest.NewLogger(t), out: &bytes.Buffer{}}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	sum, err := in.run(context.Background(), []string{"gsk", "roche"}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Companies)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 1, sum.ContextMatched)
	assert.Equal(t, 2, sum.ContextTotal)
	require.Len(t, sum.Files, 3)

	var data map[string]viewer.CompanyData
	require.NoError(t, fileutils.ReadJSONFile(filepath.Join(f.cfg.ExportDir, viewer.DataFile), &data))
	require.Contains(t, data, "gsk")
	gsk := data["gsk"]
	assert.Equal(t, "gsk", gsk.Company)
	assert.Equal(t, viewer.CompanyStats{Entities: 3, Extractions: 2, Calls: 2, Snippets: 2}, gsk.Stats)
	require.Len(t, gsk.Root.Children, 1)
	onc := gsk.Root.Children[0]
	require.Len(t, onc.Snippets, 1)
	assert.Equal(t, "Intro", onc.Snippets[0].CallTitle)
	assert.Equal(t, "Hello there. ", onc.Snippets[0].ContextBefore)
	require.Len(t, onc.Children, 1)
	assert.Equal(t, "vector-core", onc.Children[0].ID)

	var manual map[string]viewer.ManualData
	require.NoError(t, fileutils.ReadJSONFile(filepath.Join(f.cfg.ExportDir, viewer.ManualDataFile), &manual))
	assert.Contains(t, manual, "gsk")
	assert.Contains(t, manual, "roche", "manual data is exported without a consolidated run")

	var review viewer.MatchReview
	require.NoError(t, fileutils.ReadJSONFile(filepath.Join(f.cfg.ExportDir, viewer.MatchReviewFile), &review))
	assert.Equal(t, "2025-03-01T12:00:00Z", review.Generated)
	require.Contains(t, review.Companies, "gsk")
	r := review.Companies["gsk"]
	assert.Equal(t, 1, r.TotalUnmatched)
	assert.Equal(t, 1, r.TotalWithSuggestions)
	require.Len(t, r.Items, 1)
	assert.Equal(t, "gsk_vector_core_0", r.Items[0].ID)

	assert.FileExists(t, filepath.Join(f.cfg.OutputDir, "gsk", viewer.AutoMapFile))
	var failures []viewer.ContextFailure
	require.NoError(t, fileutils.ReadJSONFile(filepath.Join(f.cfg.OutputDir, "gsk", viewer.FailuresFile), &failures))
	require.Len(t, failures, 1)
	assert.Equal(t, "c2", failures[0].CallID)
}

func TestIntegrator_Preview(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cfg.Preview = true
	var out bytes.Buffer
	in := &integrator{cfg: f.cfg, logger: zaptest.NewLogger(t), out: &out}

	sum, err := in.run(context.Background(), []string{"gsk"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, sum.Files)
	assert.Contains(t, out.String(), "data gsk: entities=3 snippets=2 calls=2")
	assert.Contains(t, out.String(), "review gsk: unmatched=1 with_suggestions=1")
	assert.NoFileExists(t, filepath.Join(f.cfg.ExportDir, viewer.DataFile))
	assert.NoFileExists(t, filepath.Join(f.cfg.OutputDir, "gsk", viewer.AutoMapFile))
}

func TestIntegrator_CorruptOutputFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	writeFile(t, filepath.Join(f.cfg.OutputDir, "gsk", consolidatedFileName), "{not json")
	in := &integrator{cfg: f.cfg, logger: zaptest.NewLogger(t), out: &bytes.Buffer{}}

	sum, err := in.run(context.Background(), []string{"gsk"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
}
