// Package viewer turns consolidated org charts into the node shapes the org-chart viewer
// renders, and merges evidence between the auto-extracted tree and hand-curated manual maps.
package viewer

// Default date range used when no snippet carries a date.
const (
	DefaultRangeStart = "2023-01-01"
	DefaultRangeEnd   = "2026-01-27"
)

// Evidence statuses and confidence labels for manual map nodes.
const (
	StatusUnverified  = "unverified"
	StatusAutoMatched = "auto_matched"
	ConfidenceNone    = "none"
	ConfidenceMedium  = "medium"
)

// RootType is the node type of the synthetic company root.
const RootType = "company"

type Leader struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// SizeSource says where a size figure was heard.
type SizeSource struct {
	CallDate     string `json:"callDate,omitempty"`
	CustomerName string `json:"customerName,omitempty"`
}

type SizeMention struct {
	Value        string      `json:"value"`
	Source       *SizeSource `json:"source,omitempty"`
	SnippetIndex *int        `json:"snippetIndex,omitempty"`
}

// Snippet is one quote backing a node, optionally enriched with transcript context.
type Snippet struct {
	Quote         string        `json:"quote"`
	Date          string        `json:"date"`
	GongURL       string        `json:"gongUrl,omitempty"`
	CallID        string        `json:"callId,omitempty"`
	CallTitle     string        `json:"callTitle,omitempty"`
	ContextBefore string        `json:"contextBefore,omitempty"`
	ContextAfter  string        `json:"contextAfter,omitempty"`
	SpeakerID     string        `json:"speakerId,omitempty"`
	CustomerName  string        `json:"customerName,omitempty"`
	CustomerEmail string        `json:"customerEmail,omitempty"`
	InternalName  string        `json:"internalName,omitempty"`
	InternalEmail string        `json:"internalEmail,omitempty"`
	SizeMentions  []SizeMention `json:"sizeMentions"`
}

// AutoNode is a node of the tree built from consolidated output.
type AutoNode struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Leader       *Leader       `json:"leader"`
	Size         *string       `json:"size"`
	Mentions     int           `json:"mentions"`
	Confidence   string        `json:"confidence"`
	FirstSeen    string        `json:"firstSeen,omitempty"`
	Snippets     []Snippet     `json:"snippets"`
	SizeMentions []SizeMention `json:"sizeMentions"`
	Children     []*AutoNode   `json:"children"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AutoMapStats struct {
	Entities          int `json:"entities"`
	NodesWithSnippets int `json:"nodes_with_snippets"`
}

// AutoMap is the auto-extracted tree for one company.
type AutoMap struct {
	Company   string       `json:"company"`
	RunID     string       `json:"run_id,omitempty"`
	Source    string       `json:"source"`
	DateRange *DateRange   `json:"dateRange,omitempty"`
	Stats     AutoMapStats `json:"stats"`
	Root      *AutoNode    `json:"root"`
}

// ViewerNode is a node of the viewer's DATA tree.
type ViewerNode struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Type               string        `json:"type"`
	VerificationStatus *string       `json:"verification_status"`
	Leader             *Leader       `json:"leader"`
	Size               *string       `json:"size"`
	Mentions           int           `json:"mentions"`
	Confidence         string        `json:"confidence"`
	FirstSeen          string        `json:"firstSeen,omitempty"`
	Snippets           []Snippet     `json:"snippets"`
	SizeMentions       []SizeMention `json:"sizeMentions"`
	Children           []*ViewerNode `json:"children"`
}

type CompanyStats struct {
	Entities    int `json:"entities"`
	Extractions int `json:"extractions"`
	Calls       int `json:"calls"`
	Snippets    int `json:"snippets"`
}

type Changes struct {
	Reorgs     []any `json:"reorgs"`
	Leadership []any `json:"leadership"`
	Size       []any `json:"size"`
}

// CompanyData is one company entry of viewer_data.json.
type CompanyData struct {
	Company   string       `json:"company"`
	Stats     CompanyStats `json:"stats"`
	DateRange DateRange    `json:"dateRange"`
	Changes   Changes      `json:"changes"`
	Source    string       `json:"source"`
	Root      *ViewerNode  `json:"root"`
}

type Contact struct {
	Name            string `json:"name"`
	Title           string `json:"title,omitempty"`
	IsDecisionMaker bool   `json:"isDecisionMaker,omitempty"`
}

type MatchedEntity struct {
	Name       string `json:"name"`
	Confidence string `json:"confidence"`
}

// GongEvidence is the call evidence attached to a manual map node.
type GongEvidence struct {
	MatchedEntities []MatchedEntity `json:"matchedEntities"`
	MatchedContacts []Contact       `json:"matchedContacts"`
	TotalMentions   int             `json:"totalMentions"`
	TeamSizes       []string        `json:"teamSizes"`
	SizeMentions    []SizeMention   `json:"sizeMentions"`
	Snippets        []Snippet       `json:"snippets"`
	Confidence      string          `json:"confidence"`
	Status          string          `json:"status"`
}

// ManualViewerNode is a node of the viewer's MANUAL_DATA tree.
type ManualViewerNode struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Type         string              `json:"type"`
	Level        int                 `json:"level"`
	Sites        []string            `json:"sites"`
	Notes        string              `json:"notes"`
	Leader       *Leader             `json:"leader,omitempty"`
	GongEvidence GongEvidence        `json:"gongEvidence"`
	Children     []*ManualViewerNode `json:"children"`
}

type ManualStats struct {
	Entities int `json:"entities"`
	Matched  int `json:"matched"`
	Snippets int `json:"snippets"`
}

// ManualData is one company entry of viewer_manual_data.json.
type ManualData struct {
	Company string            `json:"company"`
	Source  string            `json:"source"`
	Stats   ManualStats       `json:"stats"`
	Root    *ManualViewerNode `json:"root"`
}
