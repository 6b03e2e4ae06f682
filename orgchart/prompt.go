package orgchart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/fileutils"
)

const (
	sampleQuotesPerEntity = 3
	sampleQuoteRunes      = 200
)

// entitySummary is what the oracle sees of a QualityEntity: no full provenance, only a few
// representative quotes.
type entitySummary struct {
	ID           string   `json:"id"`
	EntityName   string   `json:"entity_name"`
	EntityType   string   `json:"entity_type"`
	MentionCount int      `json:"mention_count"`
	Confidence   string   `json:"confidence"`
	SampleQuotes []string `json:"sample_quotes"`
}

func summarize(e QualityEntity) entitySummary {
	n := len(e.AllSources)
	if n > sampleQuotesPerEntity {
		n = sampleQuotesPerEntity
	}
	quotes := make([]string, 0, n)
	for _, s := range e.AllSources[:n] {
		quotes = append(quotes, fileutils.Prefix(s.RawQuote, sampleQuoteRunes))
	}
	return entitySummary{
		ID:           e.ID,
		EntityName:   e.EntityName,
		EntityType:   e.EntityType,
		MentionCount: e.MentionCount,
		Confidence:   e.Confidence,
		SampleQuotes: quotes,
	}
}

const outputExample = `{
  "entities": [
    {"id": "discovery-sciences", "name": "Discovery Sciences", "type": "department", "parent_id": null, "confidence": "high", "original_ids": ["discovery-sciences"]},
    {"id": "oncology", "name": "Oncology", "type": "therapeutic_area", "parent_id": "discovery-sciences", "confidence": "medium", "original_ids": ["oncology", "discovery-oncology"]}
  ],
  "hierarchy_notes": "Brief notes on hierarchy decisions",
  "duplicate_resolutions": [{"merged_names": ["Name A", "Name B"], "canonical_name": "Name A", "reason": "Same entity"}]
}`

// BuildBatchPrompt renders the user prompt for one consolidation call. batchContext is
// "Batch i/n" when the company was split, else empty.
func BuildBatchPrompt(company string, batch []QualityEntity, batchContext string) (string, error) {
	summaries := make([]entitySummary, 0, len(batch))
	ids := make([]string, 0, len(batch))
	for _, e := range batch {
		summaries = append(summaries, summarize(e))
		ids = append(ids, e.ID)
	}
	entitiesJSON, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal entity summaries: %w", err)
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal entity ids: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Process these %d organizational entities from %s Gong calls.\n", len(batch), strings.ToUpper(company))
	if batchContext != "" {
		fmt.Fprintf(&b, "(%s)\n", batchContext)
	}
	fmt.Fprintf(&b, "\nInput entity IDs: %s\n\n", idsJSON)
	b.WriteString("## Entities\n```json\n")
	b.Write(entitiesJSON)
	b.WriteString("\n```\n\n")
	b.WriteString(`## YOUR TASK

For each input entity, decide:
1. Is it a VALID organizational unit (department, team, site, therapeutic area)?
   - YES: Include it in output with its original ID
   - NO (garbage/noise): Exclude it
2. Should it be MERGED with another entity (same org unit, different name)?
   - YES: Combine into one entry, list both IDs in original_ids
   - NO: Keep as separate entry
3. Can you infer its PARENT from the quotes?
   - YES: Set parent_id to the parent's kebab-case ID
   - NO: Set parent_id to null (this is fine!)

## OUTPUT FORMAT

Return ONLY a JSON object. No explanation text before or after.

` + "```json\n" + outputExample + "\n```\n\n")
	fmt.Fprintf(&b, `CRITICAL:
- Output %d minus garbage entities (expect 60-90%% to be valid)
- Every valid entity MUST appear in your output
- If you're unsure about an entity, INCLUDE it with confidence: "low"
- An empty entities array is WRONG unless ALL inputs are garbage`, len(batch))
	return b.String(), nil
}

type crossBatchEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// BuildCrossBatchPrompt renders the prompt for the optional pass that looks for duplicates
// that landed in different batches.
func BuildCrossBatchPrompt(entities []ConsolidatedEntity) (string, error) {
	list := make([]crossBatchEntity, 0, len(entities))
	for _, e := range entities {
		list = append(list, crossBatchEntity{ID: e.ID, Name: e.Name, Type: e.Type})
	}
	listJSON, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal cross-batch entities: %w", err)
	}

	var b strings.Builder
	b.WriteString("These entities were consolidated in separate batches.\n")
	b.WriteString("Check for any remaining duplicates that should be merged.\n\n")
	b.WriteString("## Entities\n```json\n")
	b.Write(listJSON)
	b.WriteString("\n```\n\n")
	b.WriteString(`Return only entities that should be merged, each listing every merged id in original_ids.
If no merges are needed, return empty arrays.
{
  "entities": [],
  "hierarchy_notes": "Cross-batch findings",
  "duplicate_resolutions": []
}`)
	return b.String(), nil
}
