package viewer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ManualNode is a node of a hand-curated org map. Evidence may be present under either the
// legacy snake_case key or the viewer's camelCase key.
type ManualNode struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Type           string        `json:"type"`
	Level          int           `json:"level"`
	Sites          []string      `json:"sites"`
	Notes          string        `json:"notes"`
	Leader         *Leader       `json:"leader"`
	GongEvidence   *rawEvidence  `json:"gongEvidence"`
	LegacyEvidence *rawEvidence  `json:"gong_evidence"`
	Children       []*ManualNode `json:"children"`
}

type rawEvidence struct {
	MatchedEntities      []MatchedEntity `json:"matchedEntities"`
	MatchedEntitiesSnake []MatchedEntity `json:"matched_entities"`
	MatchedContacts      []Contact       `json:"matchedContacts"`
	MatchedContactsSnake []Contact       `json:"matched_contacts"`
	TotalMentions        *int            `json:"totalMentions"`
	TotalMentionsSnake   *int            `json:"total_mentions"`
	TeamSizes            []string        `json:"teamSizes"`
	TeamSizesSnake       []string        `json:"team_sizes"`
	SizeMentions         []SizeMention   `json:"sizeMentions"`
	SizeMentionsSnake    []SizeMention   `json:"size_mentions"`
	Snippets             []Snippet       `json:"snippets"`
	Confidence           string          `json:"confidence"`
	Status               string          `json:"status"`
}

func (r *rawEvidence) evidence() GongEvidence {
	g := emptyEvidence()
	if r == nil {
		return g
	}
	g.MatchedEntities = firstNonNil(r.MatchedEntitiesSnake, r.MatchedEntities, g.MatchedEntities)
	g.MatchedContacts = firstNonNil(r.MatchedContactsSnake, r.MatchedContacts, g.MatchedContacts)
	g.TeamSizes = firstNonNil(r.TeamSizesSnake, r.TeamSizes, g.TeamSizes)
	g.SizeMentions = firstNonNil(r.SizeMentionsSnake, r.SizeMentions, g.SizeMentions)
	if r.Snippets != nil {
		g.Snippets = r.Snippets
	}
	switch {
	case r.TotalMentionsSnake != nil:
		g.TotalMentions = *r.TotalMentionsSnake
	case r.TotalMentions != nil:
		g.TotalMentions = *r.TotalMentions
	}
	if r.Confidence != "" {
		g.Confidence = r.Confidence
	}
	if r.Status != "" {
		g.Status = r.Status
	}
	return g
}

func firstNonNil[T any](a, b, fallback []T) []T {
	if a != nil {
		return a
	}
	if b != nil {
		return b
	}
	return fallback
}

func emptyEvidence() GongEvidence {
	return GongEvidence{
		MatchedEntities: []MatchedEntity{},
		MatchedContacts: []Contact{},
		TeamSizes:       []string{},
		SizeMentions:    []SizeMention{},
		Snippets:        []Snippet{},
		Confidence:      ConfidenceNone,
		Status:          StatusUnverified,
	}
}

// UnmarshalJSON also accepts a bare leader name.
func (l *Leader) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*l = Leader{Name: name}
		return nil
	}
	type plain Leader
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = Leader(p)
	return nil
}

// ManualMapFiles lists the file names tried for a company, best first.
func ManualMapFiles(company string) []string {
	return []string{
		company + "_rd_map_fixed.json",
		company + "_rd_map.json",
		company + "-rd-org-map.json",
	}
}

// LoadManualMap returns the first readable manual map for company in dir, or nil when there is
// none. A file that fails to decode is logged and skipped.
func LoadManualMap(dir, company string, logger *zap.Logger) (*ManualNode, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, name := range ManualMapFiles(company) {
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read manual map: %w", err)
		}
		root, err := DecodeManualMap(b)
		if err != nil {
			logger.Warn("skipping manual map", zap.String("file", name), zap.Error(err))
			continue
		}
		return root, nil
	}
	return nil, nil
}

// DecodeManualMap accepts either {"root": node} or a bare node.
func DecodeManualMap(b []byte) (*ManualNode, error) {
	var wrapped struct {
		Root *ManualNode `json:"root"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Root != nil {
		return wrapped.Root, nil
	}
	var node ManualNode
	if err := json.Unmarshal(b, &node); err != nil {
		return nil, err
	}
	return &node, nil
}
