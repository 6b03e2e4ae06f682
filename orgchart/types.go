package orgchart

// Confidence labels used both per mention and per aggregated entity.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// DefaultEntityType is assigned when no contributing mention carried a type.
const DefaultEntityType = "team"

// OutputSource is the provenance tag written into every consolidated output file.
const OutputSource = "llm_consolidation_with_hierarchy"

// RawMention is one entity reference extracted from one call. It is the canonical shape
// produced by the ingestion adapter regardless of which extraction schema the file used.
type RawMention struct {
	EntityName  string
	EntityType  string
	RawQuote    string
	SpeakerID   string
	CallDate    string
	CallID      string
	CallIDs     []string
	Confidence  string
	Leader      string
	LeaderTitle string
	TeamSize    string
}

// callIDs returns the call ids this mention is attributed to, falling back to the single call id.
func (m RawMention) callIDs() []string {
	if len(m.CallIDs) > 0 {
		return m.CallIDs
	}
	if m.CallID != "" {
		return []string{m.CallID}
	}
	return nil
}

// Source is a provenance record backing an entity: which call, when, who said it, and how sure
// the extractor was. CallID is nil when the extractor could not attribute the quote to a call.
type Source struct {
	CallID     *string `json:"call_id"`
	CallDate   string  `json:"call_date"`
	RawQuote   string  `json:"raw_quote"`
	SpeakerID  string  `json:"speaker_id"`
	Confidence string  `json:"confidence"`
}

// HasCallID reports whether the source carries a usable call id.
func (s Source) HasCallID() bool {
	return s.CallID != nil && *s.CallID != ""
}

// AggregatedEntity is the per-group result of pre-aggregation.
type AggregatedEntity struct {
	Key         string
	EntityName  string
	EntityType  string
	TeamSize    string
	Leader      string
	LeaderTitle string
	Sources     []Source

	typeCounts map[string]int
	typeOrder  []string
}

// QualityEntity is an aggregated entity that survived the quality filter.
type QualityEntity struct {
	ID           string   `json:"id"`
	EntityName   string   `json:"entity_name"`
	EntityType   string   `json:"entity_type"`
	TeamSize     string   `json:"team_size,omitempty"`
	Leader       string   `json:"leader,omitempty"`
	LeaderTitle  string   `json:"leader_title,omitempty"`
	MentionCount int      `json:"mention_count"`
	Confidence   string   `json:"confidence"`
	AllSources   []Source `json:"all_sources"`
}

// ConsolidatedEntity is one entity as decided by the oracle.
type ConsolidatedEntity struct {
	ID          string   `json:"id" jsonschema:"required"`
	Name        string   `json:"name" jsonschema:"required"`
	Type        string   `json:"type" jsonschema:"required"`
	ParentID    *string  `json:"parent_id" jsonschema:"required"`
	Confidence  string   `json:"confidence" jsonschema:"required"`
	OriginalIDs []string `json:"original_ids" jsonschema:"required"`
}

// DuplicateResolution documents one merge decision made by the oracle.
type DuplicateResolution struct {
	MergedNames   []string `json:"merged_names" jsonschema:"required"`
	CanonicalName string   `json:"canonical_name" jsonschema:"required"`
	Reason        string   `json:"reason" jsonschema:"required"`
}

// ConsolidationResult is the JSON object the oracle must return, and also the concatenation
// of every batch result for a company.
type ConsolidationResult struct {
	Entities             []ConsolidatedEntity  `json:"entities" jsonschema:"required"`
	HierarchyNotes       string                `json:"hierarchy_notes" jsonschema:"required"`
	DuplicateResolutions []DuplicateResolution `json:"duplicate_resolutions" jsonschema:"required"`
}

// MergedEntity is the final unit of output: the oracle's structure with evidence reattached.
type MergedEntity struct {
	ID           string   `json:"id"`
	EntityName   string   `json:"entity_name"`
	EntityType   string   `json:"entity_type"`
	ParentEntity *string  `json:"parent_entity"`
	TeamSize     *string  `json:"team_size"`
	Leader       *string  `json:"leader"`
	LeaderTitle  *string  `json:"leader_title"`
	MentionCount int      `json:"mention_count"`
	Confidence   string   `json:"confidence"`
	AllSources   []Source `json:"all_sources"`
	OriginalIDs  []string `json:"original_ids"`
}

// RunStats summarizes one company run so that silent coverage loss stays visible.
type RunStats struct {
	RawExtractions      int      `json:"raw_extractions"`
	RejectedExtractions int      `json:"rejected_extractions"`
	PreAggregated       int      `json:"pre_aggregated"`
	QualityFiltered     int      `json:"quality_filtered"`
	FinalConsolidated   int      `json:"final_consolidated"`
	WithHierarchy       int      `json:"with_hierarchy"`
	Batches             int      `json:"batches"`
	FailedBatches       int      `json:"failed_batches"`
	EmptyBatches        int      `json:"empty_batches"`
	AliasMatches        int      `json:"alias_matches"`
	Warnings            []string `json:"warnings,omitempty"`
}

// RunOutput is the persisted snapshot for one company.
type RunOutput struct {
	Account              string                `json:"account"`
	RunID                string                `json:"run_id,omitempty"`
	ConsolidatedAt       string                `json:"consolidated_at,omitempty"`
	Source               string                `json:"source,omitempty"`
	Stats                RunStats              `json:"stats"`
	Entities             []MergedEntity        `json:"entities"`
	Contacts             []any                 `json:"contacts"`
	HierarchyNotes       string                `json:"hierarchy_notes"`
	DuplicateResolutions []DuplicateResolution `json:"duplicate_resolutions"`
}

// AliasMatch records a quality entity whose normalized name is a known alias.
type AliasMatch struct {
	ExtractedName string   `json:"extracted_name"`
	ExtractedID   string   `json:"extracted_id"`
	CanonicalID   string   `json:"canonical_id"`
	MatchedAlias  string   `json:"matched_alias"`
	MatchType     string   `json:"match_type"`
	Sources       []string `json:"sources"`
}

// AliasReport is the per-company side-channel report of alias hits.
type AliasReport struct {
	Company     string       `json:"company"`
	GeneratedAt string       `json:"generated_at"`
	Matches     []AliasMatch `json:"matches"`
	Summary     struct {
		Total int `json:"total"`
	} `json:"summary"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
