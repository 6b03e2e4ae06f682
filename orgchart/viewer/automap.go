package viewer

import (
	"strconv"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

// BuildAutoMap turns a consolidated run into a tree rooted at a synthetic company node.
//
// Entities attach under their parent_entity. A parent that is unknown, the entity itself, or
// part of a cycle sends the entity to the root instead. A repeated id gets a numeric suffix
// so that no node appears twice; parent references always resolve to the first holder.
func BuildAutoMap(out orgchart.RunOutput, displayName string) AutoMap {
	company := orgchart.CompanySlug(out.Account)
	if displayName == "" {
		displayName = out.Account
	}
	root := &AutoNode{
		ID:           company,
		Name:         displayName,
		Type:         RootType,
		Snippets:     []Snippet{},
		SizeMentions: []SizeMention{},
		Children:     []*AutoNode{},
	}

	used := make(map[string]bool, len(out.Entities))
	order := make([]string, 0, len(out.Entities))
	nodes := make(map[string]*AutoNode, len(out.Entities))
	parentOf := make(map[string]string, len(out.Entities))
	withSnippets := 0

	for _, e := range out.Entities {
		id := e.ID
		if id == "" {
			id = orgchart.Slugify(e.EntityName)
		}
		id = uniqueID(id, used)
		used[id] = true

		n := autoNode(id, e)
		if len(n.Snippets) > 0 {
			withSnippets++
		}
		nodes[id] = n
		order = append(order, id)
		if e.ParentEntity != nil && *e.ParentEntity != "" && *e.ParentEntity != id {
			parentOf[id] = *e.ParentEntity
		}
	}

	for _, id := range order {
		p, ok := parentOf[id]
		if !ok {
			continue
		}
		if _, known := nodes[p]; !known || reaches(parentOf, p, id) {
			delete(parentOf, id)
		}
	}

	for _, id := range order {
		parent := root
		if p, ok := parentOf[id]; ok {
			parent = nodes[p]
		}
		parent.Children = append(parent.Children, nodes[id])
	}

	return AutoMap{
		Company: company,
		RunID:   out.RunID,
		Source:  out.Source,
		Stats: AutoMapStats{
			Entities:          len(order),
			NodesWithSnippets: withSnippets,
		},
		Root: root,
	}
}

// reaches reports whether walking parent links from start arrives at target.
func reaches(parentOf map[string]string, start, target string) bool {
	seen := make(map[string]bool)
	for cur := start; cur != ""; cur = parentOf[cur] {
		if cur == target {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
	}
	return false
}

func uniqueID(id string, used map[string]bool) string {
	if !used[id] {
		return id
	}
	for n := 2; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}

func autoNode(id string, e orgchart.MergedEntity) *AutoNode {
	n := &AutoNode{
		ID:           id,
		Name:         e.EntityName,
		Type:         e.EntityType,
		Size:         e.TeamSize,
		Mentions:     e.MentionCount,
		Confidence:   e.Confidence,
		Snippets:     make([]Snippet, 0, len(e.AllSources)),
		SizeMentions: []SizeMention{},
		Children:     []*AutoNode{},
	}
	if e.Leader != nil {
		n.Leader = &Leader{Name: *e.Leader}
		if e.LeaderTitle != nil {
			n.Leader.Title = *e.LeaderTitle
		}
	}

	for i, s := range e.AllSources {
		snip := Snippet{
			Quote:        s.RawQuote,
			Date:         s.CallDate,
			SpeakerID:    s.SpeakerID,
			SizeMentions: []SizeMention{},
		}
		if s.HasCallID() {
			snip.CallID = *s.CallID
		}
		if size := orgchart.ExtractTeamSize(s.RawQuote); size != "" {
			idx := i
			m := SizeMention{Value: size, SnippetIndex: &idx}
			if s.CallDate != "" {
				m.Source = &SizeSource{CallDate: s.CallDate}
			}
			snip.SizeMentions = append(snip.SizeMentions, m)
			n.SizeMentions = append(n.SizeMentions, m)
		}
		if s.CallDate != "" && (n.FirstSeen == "" || s.CallDate < n.FirstSeen) {
			n.FirstSeen = s.CallDate
		}
		n.Snippets = append(n.Snippets, snip)
	}
	return n
}
