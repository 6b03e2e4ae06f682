// Package aliasstore holds the curated merge table that reviewers build in the viewer: which
// extracted entities were folded into a canonical entity and under which alternate names.
package aliasstore

import (
	"errors"
	"strings"
)

// ErrUnavailable is returned when the merge table cannot be fetched.
var ErrUnavailable = errors.New("alias store unavailable")

// Merge is one reviewer decision: the canonical entity absorbed other entities and their names.
type Merge struct {
	Absorbed       []string `json:"absorbed"`
	Aliases        []string `json:"aliases"`
	MergedSnippets []string `json:"mergedSnippets"`
	MergedAt       string   `json:"mergedAt,omitempty"`
	User           string   `json:"user,omitempty"`
}

// Merges maps a canonical entity id to its merge record.
type Merges map[string]Merge

// TotalAbsorbed counts absorbed entity ids across every merge.
func (m Merges) TotalAbsorbed() int {
	n := 0
	for _, merge := range m {
		n += len(merge.Absorbed)
	}
	return n
}

// Key returns the storage key for an account's merge table.
func Key(account string) string {
	return "merges:" + strings.ToLower(strings.TrimSpace(account))
}

// DefaultAccounts are the accounts the merges API accepts when none are configured.
var DefaultAccounts = []string{"abbvie", "astrazeneca", "gsk", "lilly", "novartis", "regeneron", "roche"}
