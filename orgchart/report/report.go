// Package report renders a human-readable summary of one company run.
package report

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

// Markdown renders stats, the hierarchy outline, duplicate resolutions, alias hits and
// warnings. aliases may be nil.
func Markdown(out orgchart.RunOutput, aliases *orgchart.AliasReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Consolidation report: %s\n\n", out.Account)
	if out.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`", out.RunID)
		if out.ConsolidatedAt != "" {
			fmt.Fprintf(&b, " at %s", out.ConsolidatedAt)
		}
		b.WriteString("\n\n")
	}

	s := out.Stats
	b.WriteString("## Stats\n\n| Stage | Count |\n|---|---:|\n")
	rows := []struct {
		name  string
		value int
	}{
		{"Raw extractions", s.RawExtractions},
		{"Rejected extractions", s.RejectedExtractions},
		{"Pre-aggregated", s.PreAggregated},
		{"Quality filtered", s.QualityFiltered},
		{"Final consolidated", s.FinalConsolidated},
		{"With hierarchy", s.WithHierarchy},
		{"Oracle batches", s.Batches},
		{"Failed batches", s.FailedBatches},
		{"Empty batches", s.EmptyBatches},
		{"Alias matches", s.AliasMatches},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", r.name, r.value)
	}
	b.WriteString("\n")

	if len(s.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Hierarchy\n\n")
	if len(out.Entities) == 0 {
		b.WriteString("_No entities._\n\n")
	} else {
		writeOutline(&b, out.Entities)
		b.WriteString("\n")
	}

	if notes := strings.TrimSpace(out.HierarchyNotes); notes != "" {
		b.WriteString("## Notes\n\n")
		b.WriteString(notes)
		b.WriteString("\n\n")
	}

	if len(out.DuplicateResolutions) > 0 {
		b.WriteString("## Duplicate resolutions\n\n| Canonical | Merged | Reason |\n|---|---|---|\n")
		for _, d := range out.DuplicateResolutions {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(d.CanonicalName), cell(strings.Join(d.MergedNames, ", ")), cell(d.Reason))
		}
		b.WriteString("\n")
	}

	if aliases != nil && len(aliases.Matches) > 0 {
		b.WriteString("## Alias matches\n\n| Extracted | Canonical | Alias |\n|---|---|---|\n")
		for _, m := range aliases.Matches {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(m.ExtractedName), cell(m.CanonicalID), cell(m.MatchedAlias))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeOutline(b *strings.Builder, entities []orgchart.MergedEntity) {
	byID := make(map[string]bool, len(entities))
	for _, e := range entities {
		byID[e.ID] = true
	}
	children := make(map[string][]orgchart.MergedEntity)
	var roots []orgchart.MergedEntity
	for _, e := range entities {
		if e.ParentEntity != nil && byID[*e.ParentEntity] && *e.ParentEntity != e.ID {
			children[*e.ParentEntity] = append(children[*e.ParentEntity], e)
			continue
		}
		roots = append(roots, e)
	}
	sort.SliceStable(roots, func(i, j int) bool { return roots[i].MentionCount > roots[j].MentionCount })

	seen := make(map[string]bool, len(entities))
	var walk func(e orgchart.MergedEntity, depth int)
	walk = func(e orgchart.MergedEntity, depth int) {
		if seen[e.ID] {
			return
		}
		seen[e.ID] = true
		fmt.Fprintf(b, "%s- **%s** (%s, %d mentions, %s)\n", strings.Repeat("  ", depth), e.EntityName, e.EntityType, e.MentionCount, e.Confidence)
		for _, c := range children[e.ID] {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	// Entities caught in a parent cycle are never reached from a root.
	for _, e := range entities {
		walk(e, 0)
	}
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderHTML converts the markdown report to a standalone HTML page.
func RenderHTML(title, md string) ([]byte, error) {
	var content bytes.Buffer
	conv := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := conv.Convert([]byte(md), &content); err != nil {
		return nil, fmt.Errorf("markdown convert: %w", err)
	}
	var page bytes.Buffer
	page.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>")
	page.WriteString(html.EscapeString(title))
	page.WriteString("</title><style>body{font-family:sans-serif;max-width:960px;margin:2rem auto;}table{border-collapse:collapse;}td,th{border:1px solid #ccc;padding:4px 8px;}</style></head><body>")
	page.Write(content.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}
