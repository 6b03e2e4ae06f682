package viewer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDecodeManualMap_Shapes(t *testing.T) {
	t.Parallel()

	wrapped, err := DecodeManualMap([]byte(`{"root":{"id":"r","name":"Root","children":[{"id":"a","name":"A","leader":"Pat Lee"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "Root", wrapped.Name)
	require.Len(t, wrapped.Children, 1)
	require.NotNil(t, wrapped.Children[0].Leader)
	assert.Equal(t, Leader{Name: "Pat Lee"}, *wrapped.Children[0].Leader)

	bare, err := DecodeManualMap([]byte(`{"id":"r","name":"Bare","leader":{"name":"Kim","title":"VP"},"gong_evidence":{"total_mentions":3}}`))
	require.NoError(t, err)
	assert.Equal(t, "Bare", bare.Name)
	assert.Equal(t, Leader{Name: "Kim", Title: "VP"}, *bare.Leader)
	assert.Equal(t, 3, bare.LegacyEvidence.evidence().TotalMentions)

	_, err = DecodeManualMap([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestLoadManualMap_SkipsBrokenFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gsk_rd_map_fixed.json"), []byte(`{"root":`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gsk_rd_map.json"), []byte(`{"root":{"id":"r","name":"GSK R&D"}}`), 0o644))

	root, err := LoadManualMap(dir, "gsk", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, "GSK R&D", root.Name)

	none, err := LoadManualMap(dir, "roche", nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}
