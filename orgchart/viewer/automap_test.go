package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

func sp(s string) *string { return &s }

func entity(id, parent string, sources ...orgchart.Source) orgchart.MergedEntity {
	e := orgchart.MergedEntity{
		ID:           id,
		EntityName:   "Entity " + id,
		EntityType:   "team",
		MentionCount: len(sources),
		Confidence:   "medium",
		AllSources:   sources,
		OriginalIDs:  []string{id},
	}
	if parent != "" {
		e.ParentEntity = sp(parent)
	}
	return e
}

func childIDs(n *AutoNode) []string {
	ids := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestBuildAutoMap_TreeShape(t *testing.T) {
	t.Parallel()

	out := orgchart.RunOutput{
		Account: "GSK",
		RunID:   "run-9",
		Source:  orgchart.OutputSource,
		Entities: []orgchart.MergedEntity{
			entity("a", "", orgchart.Source{CallID: sp("c1"), CallDate: "2024-03-01", RawQuote: "we have 40 people in the group"}),
			entity("b", "a"),
			entity("c", "missing"),
			entity("d", "d"),
			entity("e", "f"),
			entity("f", "e"),
			entity("b", "a"),
		},
	}

	m := BuildAutoMap(out, "GSK plc")
	require.NotNil(t, m.Root)
	assert.Equal(t, "gsk", m.Company)
	assert.Equal(t, "run-9", m.RunID)
	assert.Equal(t, "GSK plc", m.Root.Name)
	assert.Equal(t, RootType, m.Root.Type)
	assert.Equal(t, 7, m.Stats.Entities)
	assert.Equal(t, 1, m.Stats.NodesWithSnippets)

	assert.Equal(t, []string{"a", "c", "d", "e"}, childIDs(m.Root))
	a := m.Root.Children[0]
	assert.Equal(t, []string{"b", "b-2"}, childIDs(a))
	e := m.Root.Children[3]
	assert.Equal(t, []string{"f"}, childIDs(e))
}

func TestBuildAutoMap_NodeFields(t *testing.T) {
	t.Parallel()

	e := entity("onc", "",
		orgchart.Source{CallID: sp("c1"), CallDate: "2024-03-01", RawQuote: "about 40 scientists", SpeakerID: "s1"},
		orgchart.Source{CallDate: "2024-01-15", RawQuote: "oncology is growing"},
	)
	e.TeamSize = sp("40")
	e.Leader = sp("Jane Doe")
	e.LeaderTitle = sp("VP")

	m := BuildAutoMap(orgchart.RunOutput{Account: "roche", Entities: []orgchart.MergedEntity{e}}, "")
	require.Len(t, m.Root.Children, 1)
	n := m.Root.Children[0]

	assert.Equal(t, "roche", m.Root.Name)
	assert.Equal(t, "2024-01-15", n.FirstSeen)
	require.NotNil(t, n.Leader)
	assert.Equal(t, Leader{Name: "Jane Doe", Title: "VP"}, *n.Leader)
	require.NotNil(t, n.Size)
	assert.Equal(t, "40", *n.Size)

	require.Len(t, n.Snippets, 2)
	assert.Equal(t, "c1", n.Snippets[0].CallID)
	assert.Equal(t, "s1", n.Snippets[0].SpeakerID)
	assert.Equal(t, "", n.Snippets[1].CallID)
	require.Len(t, n.Snippets[0].SizeMentions, 1)
	assert.Empty(t, n.Snippets[1].SizeMentions)

	require.Len(t, n.SizeMentions, 1)
	assert.Equal(t, "40", n.SizeMentions[0].Value)
	require.NotNil(t, n.SizeMentions[0].SnippetIndex)
	assert.Equal(t, 0, *n.SizeMentions[0].SnippetIndex)
	require.NotNil(t, n.SizeMentions[0].Source)
	assert.Equal(t, "2024-03-01", n.SizeMentions[0].Source.CallDate)
}
