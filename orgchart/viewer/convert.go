package viewer

import (
	"strings"
)

func lookupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BuildLeaderLookup indexes manual map leaders by lowercased name.
func BuildLeaderLookup(root *ManualNode) map[string]Leader {
	out := make(map[string]Leader)
	var walk func(n *ManualNode)
	walk = func(n *ManualNode) {
		if n == nil {
			return
		}
		if key := lookupKey(n.Name); key != "" && n.Leader != nil {
			out[key] = *n.Leader
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// AutoEntity is the evidence an auto node can lend to a manual node.
type AutoEntity struct {
	Snippets     []Snippet
	Size         *string
	Leader       *Leader
	SizeMentions []SizeMention
}

// BuildAutoEntityLookup indexes every auto node with snippets by lowercased name and by id.
func BuildAutoEntityLookup(root *AutoNode) map[string]AutoEntity {
	out := make(map[string]AutoEntity)
	var walk func(n *AutoNode)
	walk = func(n *AutoNode) {
		if n == nil {
			return
		}
		if len(n.Snippets) > 0 {
			e := AutoEntity{
				Snippets:     n.Snippets,
				Size:         n.Size,
				Leader:       n.Leader,
				SizeMentions: n.SizeMentions,
			}
			if key := lookupKey(n.Name); key != "" {
				out[key] = e
			}
			if n.ID != "" {
				out[n.ID] = e
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// ConvertAutoNode converts an auto node and its subtree into viewer nodes. A node without a
// leader borrows one from leaders by name. When transcripts are given each snippet is
// enriched with its surrounding context and stats records the outcome.
func ConvertAutoNode(n *AutoNode, leaders map[string]Leader, transcripts map[string]Transcript, stats *ContextStats) *ViewerNode {
	if n == nil {
		return nil
	}
	v := &ViewerNode{
		ID:           n.ID,
		Name:         n.Name,
		Type:         n.Type,
		Leader:       n.Leader,
		Size:         n.Size,
		Mentions:     n.Mentions,
		Confidence:   n.Confidence,
		FirstSeen:    n.FirstSeen,
		Snippets:     make([]Snippet, 0, len(n.Snippets)),
		SizeMentions: n.SizeMentions,
		Children:     make([]*ViewerNode, 0, len(n.Children)),
	}
	if v.Leader == nil {
		if l, ok := leaders[lookupKey(n.Name)]; ok {
			v.Leader = &l
		}
	}
	if v.SizeMentions == nil {
		v.SizeMentions = []SizeMention{}
	}
	for _, s := range n.Snippets {
		if s.SizeMentions == nil {
			s.SizeMentions = []SizeMention{}
		}
		stats.enrich(&s, transcripts)
		v.Snippets = append(v.Snippets, s)
	}
	for _, c := range n.Children {
		v.Children = append(v.Children, ConvertAutoNode(c, leaders, transcripts, stats))
	}
	return v
}

// ConvertAutoMap builds the viewer DATA entry for a company.
func ConvertAutoMap(display string, auto AutoMap, manual *ManualNode, transcripts map[string]Transcript) (CompanyData, ContextStats) {
	var stats ContextStats
	root := ConvertAutoNode(auto.Root, BuildLeaderLookup(manual), transcripts, &stats)

	dr := DateRange{}
	if auto.DateRange != nil {
		dr = *auto.DateRange
	} else {
		dr.Start, dr.End = snippetDateRange(root)
	}
	if dr.Start == "" {
		dr.Start = DefaultRangeStart
	}
	if dr.End == "" {
		dr.End = DefaultRangeEnd
	}

	source := auto.Source
	if source == "" {
		source = "unknown"
	}
	return CompanyData{
		Company: display,
		Stats: CompanyStats{
			Entities:    countViewerNodes(root),
			Extractions: auto.Stats.NodesWithSnippets,
			Calls:       countCalls(root),
			Snippets:    countQuotedSnippets(root),
		},
		DateRange: dr,
		Changes:   Changes{Reorgs: []any{}, Leadership: []any{}, Size: []any{}},
		Source:    source,
		Root:      root,
	}, stats
}

func walkViewer(n *ViewerNode, fn func(*ViewerNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		walkViewer(c, fn)
	}
}

func countViewerNodes(root *ViewerNode) int {
	count := 0
	walkViewer(root, func(*ViewerNode) { count++ })
	return count
}

func countQuotedSnippets(root *ViewerNode) int {
	count := 0
	walkViewer(root, func(n *ViewerNode) {
		for _, s := range n.Snippets {
			if s.Quote != "" {
				count++
			}
		}
	})
	return count
}

func countCalls(root *ViewerNode) int {
	calls := make(map[string]struct{})
	walkViewer(root, func(n *ViewerNode) {
		for _, s := range n.Snippets {
			if s.CallID != "" {
				calls[s.CallID] = struct{}{}
			}
		}
	})
	return len(calls)
}

func snippetDateRange(root *ViewerNode) (string, string) {
	var lo, hi string
	walkViewer(root, func(n *ViewerNode) {
		for _, s := range n.Snippets {
			if s.Date == "" {
				continue
			}
			if lo == "" || s.Date < lo {
				lo = s.Date
			}
			if s.Date > hi {
				hi = s.Date
			}
		}
	})
	return lo, hi
}

// ConvertManualNode converts a manual node and its subtree. A node that carries no snippets
// of its own takes evidence from the auto node with the same lowercased name or id.
func ConvertManualNode(n *ManualNode, lookup map[string]AutoEntity) *ManualViewerNode {
	if n == nil {
		return nil
	}
	v := &ManualViewerNode{
		ID:       n.ID,
		Name:     n.Name,
		Type:     n.Type,
		Level:    n.Level,
		Sites:    n.Sites,
		Notes:    n.Notes,
		Leader:   n.Leader,
		Children: make([]*ManualViewerNode, 0, len(n.Children)),
	}
	if v.Sites == nil {
		v.Sites = []string{}
	}
	evidence := n.LegacyEvidence
	if evidence == nil {
		evidence = n.GongEvidence
	}
	v.GongEvidence = evidence.evidence()

	if len(lookup) > 0 && len(v.GongEvidence.Snippets) == 0 {
		match, ok := lookup[lookupKey(n.Name)]
		if !ok && n.ID != "" {
			match, ok = lookup[n.ID]
		}
		if ok {
			mergeAutoEvidence(v, match)
		}
	}

	for _, c := range n.Children {
		v.Children = append(v.Children, ConvertManualNode(c, lookup))
	}
	return v
}

func mergeAutoEvidence(v *ManualViewerNode, e AutoEntity) {
	if len(e.Snippets) > 0 {
		v.GongEvidence.Snippets = e.Snippets
		v.GongEvidence.TotalMentions = len(e.Snippets)
		v.GongEvidence.Confidence = ConfidenceMedium
		v.GongEvidence.Status = StatusAutoMatched
	}
	if e.Size != nil && *e.Size != "" {
		v.GongEvidence.TeamSizes = []string{*e.Size}
	}
	if len(e.SizeMentions) > 0 {
		v.GongEvidence.SizeMentions = e.SizeMentions
	}
	if v.Leader == nil && e.Leader != nil {
		v.Leader = e.Leader
	}
}

// ManualMapStats counts nodes, auto-matched nodes and snippets in a converted manual tree.
func ManualMapStats(root *ManualViewerNode) ManualStats {
	var s ManualStats
	var walk func(n *ManualViewerNode)
	walk = func(n *ManualViewerNode) {
		if n == nil {
			return
		}
		s.Entities++
		if n.GongEvidence.Status == StatusAutoMatched {
			s.Matched++
		}
		s.Snippets += len(n.GongEvidence.Snippets)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return s
}

// ConvertManualMap builds the viewer MANUAL_DATA entry for a company. auto may be nil.
func ConvertManualMap(display string, manual *ManualNode, auto *AutoMap) ManualData {
	var lookup map[string]AutoEntity
	if auto != nil && auto.Root != nil {
		lookup = BuildAutoEntityLookup(auto.Root)
	}
	root := ConvertManualNode(manual, lookup)
	return ManualData{
		Company: display,
		Source:  "Manual Map - " + display,
		Stats:   ManualMapStats(root),
		Root:    root,
	}
}
