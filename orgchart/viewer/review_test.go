package viewer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMatchReview(t *testing.T) {
	t.Parallel()

	vector := &AutoNode{
		Name:     "Vector Core",
		Snippets: []Snippet{{Quote: "vector core", CallID: "c3"}},
	}
	cell := &AutoNode{
		Name: "Cell  Therapy",
		Type: "department",
		Size: sp("30"),
		Snippets: []Snippet{
			{Quote: "cell therapy team", Date: "2024-04-01", CallID: "c1", CustomerName: "Ana"},
			{Quote: "again", CallID: "c1"},
			{Quote: "and again", CallID: "c2"},
		},
		Confidence: "high",
		Children:   []*AutoNode{vector},
	}
	ds := &AutoNode{Name: "Discovery Sciences", Snippets: []Snippet{{Quote: "ds"}}}
	auto := AutoMap{Root: &AutoNode{Name: "GSK", Children: []*AutoNode{ds, cell}}}
	manual := &ManualNode{Name: "R&D", Children: []*ManualNode{{Name: "discovery sciences"}}}
	llm := LLMMatches{Matches: []LLMMatch{
		{EntityName: "Cell Therapy", MatchedNodeID: "m-cgt", MatchedNodeName: "Cell & Gene Therapy", Confidence: "high"},
		{EntityName: "Vector Core"},
	}}

	review, ok := BuildMatchReview("gsk", auto, manual, llm)
	require.True(t, ok)
	assert.Equal(t, 2, review.TotalUnmatched)
	assert.Equal(t, 1, review.TotalWithSuggestions)
	require.Len(t, review.Items, 2)

	first := review.Items[0]
	assert.Equal(t, "gsk_cell_therapy_0", first.ID)
	assert.Equal(t, "Cell  Therapy", first.GongEntity)
	require.NotNil(t, first.GongParent)
	assert.Equal(t, "GSK", *first.GongParent)
	assert.Equal(t, "department", first.EntityType)
	assert.Equal(t, "high", first.Confidence)
	assert.Equal(t, 3, first.MentionCount)
	assert.Equal(t, 2, first.CallCount)
	assert.Equal(t, "cell therapy team", first.Snippet)
	assert.Equal(t, "Ana", first.PersonName)
	assert.Equal(t, ReviewStatusPending, first.Status)
	require.NotNil(t, first.LLMSuggestedMatch)
	assert.Equal(t, "m-cgt", first.LLMSuggestedMatch.ManualNodeID)

	second := review.Items[1]
	assert.Equal(t, "gsk_vector_core_1", second.ID)
	assert.Equal(t, "Cell  Therapy", *second.GongParent)
	assert.Equal(t, "unknown", second.EntityType)
	assert.Equal(t, ConfidenceMedium, second.Confidence)
	assert.Nil(t, second.LLMSuggestedMatch)
}

func TestBuildMatchReview_NoAutoRoot(t *testing.T) {
	t.Parallel()

	_, ok := BuildMatchReview("gsk", AutoMap{}, nil, LLMMatches{})
	assert.False(t, ok)
}

func TestLoadLLMMatches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := LoadLLMMatches(dir, "gsk")
	require.NoError(t, err)
	assert.Empty(t, m.Matches)

	body := `{"matches":[{"entity_name":"Oncology","matched_node_id":"n1"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gsk_cleaned_llm_matches.json"), []byte(body), 0o644))
	m, err = LoadLLMMatches(dir, "gsk")
	require.NoError(t, err)
	require.Len(t, m.Matches, 1)
	assert.Equal(t, "n1", m.Matches[0].MatchedNodeID)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "gsk_llm_matches.json"), []byte("{"), 0o644))
	_, err = LoadLLMMatches(dir, "gsk")
	assert.Error(t, err)
}
