package viewer

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/fileutils"
)

const ReviewStatusPending = "pending"

// LLMMatch is one suggestion from the entity-matching pass.
type LLMMatch struct {
	EntityName      string `json:"entity_name"`
	MatchedNodeID   string `json:"matched_node_id"`
	MatchedNodeName string `json:"matched_node_name"`
	MatchedNodePath string `json:"matched_node_path"`
	Confidence      string `json:"confidence"`
	Reasoning       string `json:"reasoning"`
}

type LLMMatches struct {
	Matches []LLMMatch `json:"matches"`
}

// LoadLLMMatches reads {company}_llm_matches.json from dir, falling back to the cleaned
// variant. Neither file existing is not an error.
func LoadLLMMatches(dir, company string) (LLMMatches, error) {
	for _, name := range []string{company + "_llm_matches.json", company + "_cleaned_llm_matches.json"} {
		var m LLMMatches
		err := fileutils.ReadJSONFile(filepath.Join(dir, name), &m)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return LLMMatches{}, fmt.Errorf("load llm matches: %w", err)
		}
	}
	return LLMMatches{}, nil
}

type SuggestedMatch struct {
	ManualNodeID   string `json:"manual_node_id"`
	ManualNodeName string `json:"manual_node_name"`
	ManualNodePath string `json:"manual_node_path"`
	Confidence     string `json:"confidence"`
	Reasoning      string `json:"reasoning"`
}

// ReviewItem is an auto entity with evidence that no manual node matches by name.
type ReviewItem struct {
	ID                string          `json:"id"`
	Company           string          `json:"company"`
	GongEntity        string          `json:"gong_entity"`
	GongParent        *string         `json:"gong_parent"`
	EntityType        string          `json:"entity_type"`
	TeamSize          *string         `json:"team_size"`
	Confidence        string          `json:"confidence"`
	MentionCount      int             `json:"mention_count"`
	Snippet           string          `json:"snippet"`
	SnippetDate       string          `json:"snippet_date,omitempty"`
	PersonName        string          `json:"person_name,omitempty"`
	PersonEmail       string          `json:"person_email,omitempty"`
	InternalName      string          `json:"internal_name,omitempty"`
	InternalEmail     string          `json:"internal_email,omitempty"`
	LLMSuggestedMatch *SuggestedMatch `json:"llm_suggested_match"`
	Status            string          `json:"status"`
	GongURL           string          `json:"gong_url,omitempty"`
	CallID            string          `json:"call_id,omitempty"`
	CallCount         int             `json:"call_count"`
	AllSnippets       []Snippet       `json:"all_snippets"`
}

// CompanyReview is one company entry of viewer_match_review.json.
type CompanyReview struct {
	TotalUnmatched       int          `json:"total_unmatched"`
	TotalWithSuggestions int          `json:"total_with_suggestions"`
	Items                []ReviewItem `json:"items"`
}

// MatchReview is the whole viewer_match_review.json document.
type MatchReview struct {
	Generated string                   `json:"generated"`
	Companies map[string]CompanyReview `json:"companies"`
}

var spaceRun = regexp.MustCompile(`\s+`)

func reviewKey(name string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// BuildMatchReview lists every auto node that has snippets but no manual node of the same
// normalized name, in depth-first order. It reports false when there is no auto tree.
func BuildMatchReview(company string, auto AutoMap, manual *ManualNode, llm LLMMatches) (CompanyReview, bool) {
	if auto.Root == nil {
		return CompanyReview{}, false
	}

	manualNames := make(map[string]struct{})
	var collect func(n *ManualNode)
	collect = func(n *ManualNode) {
		if n == nil {
			return
		}
		if key := reviewKey(n.Name); key != "" {
			manualNames[key] = struct{}{}
		}
		for _, c := range n.Children {
			collect(c)
		}
	}
	collect(manual)

	suggestions := make(map[string]LLMMatch)
	for _, m := range llm.Matches {
		if key := reviewKey(m.EntityName); key != "" {
			suggestions[key] = m
		}
	}

	review := CompanyReview{Items: []ReviewItem{}}
	var walk func(n *AutoNode, parent *string)
	walk = func(n *AutoNode, parent *string) {
		key := reviewKey(n.Name)
		_, matched := manualNames[key]
		if len(n.Snippets) > 0 && !matched {
			item := reviewItem(company, key, len(review.Items), n, parent)
			if m, ok := suggestions[key]; ok && m.MatchedNodeID != "" {
				item.LLMSuggestedMatch = &SuggestedMatch{
					ManualNodeID:   m.MatchedNodeID,
					ManualNodeName: m.MatchedNodeName,
					ManualNodePath: m.MatchedNodePath,
					Confidence:     m.Confidence,
					Reasoning:      m.Reasoning,
				}
				review.TotalWithSuggestions++
			}
			review.Items = append(review.Items, item)
		}
		name := n.Name
		for _, c := range n.Children {
			walk(c, &name)
		}
	}
	walk(auto.Root, nil)
	review.TotalUnmatched = len(review.Items)
	return review, true
}

func reviewItem(company, key string, n int, node *AutoNode, parent *string) ReviewItem {
	first := node.Snippets[0]
	calls := make(map[string]struct{})
	for _, s := range node.Snippets {
		if s.CallID != "" {
			calls[s.CallID] = struct{}{}
		}
	}
	typ := node.Type
	if typ == "" {
		typ = "unknown"
	}
	conf := node.Confidence
	if conf == "" {
		conf = ConfidenceMedium
	}
	return ReviewItem{
		ID:            fmt.Sprintf("%s_%s_%d", company, strings.ReplaceAll(key, " ", "_"), n),
		Company:       company,
		GongEntity:    node.Name,
		GongParent:    parent,
		EntityType:    typ,
		TeamSize:      node.Size,
		Confidence:    conf,
		MentionCount:  len(node.Snippets),
		Snippet:       first.Quote,
		SnippetDate:   first.Date,
		PersonName:    first.CustomerName,
		PersonEmail:   first.CustomerEmail,
		InternalName:  first.InternalName,
		InternalEmail: first.InternalEmail,
		Status:        ReviewStatusPending,
		GongURL:       first.GongURL,
		CallID:        first.CallID,
		CallCount:     len(calls),
		AllSnippets:   node.Snippets,
	}
}
