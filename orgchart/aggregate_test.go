package orgchart

import "testing"

func TestExtractTeamSize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"we have 12 scientists on site":         "12",
		"about 1,200 employees globally":        "1,200",
		"there are 5 of us now":                 "5",
		"it's a team of 30":                     "30",
		"we run a 15-person team":               "15",
		"we're about 25":                        "25",
		"we are 250 strong":                     "250",
		"we're 40 years into this program":      "",
		"we are 400 years old as a company":     "",
		"we're 3 licenses short":                "",
		"we're 10 seats":                        "",
		"no numbers here":                       "",
		"":                                      "",
		"Yeah, we're about 40 people right now": "40",
	}
	for in, want := range cases {
		if got := ExtractTeamSize(in); got != want {
			t.Fatalf("ExtractTeamSize(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestPreAggregate_EndToEndGroup(t *testing.T) {
	t.Parallel()

	mentions := []RawMention{
		{EntityName: "Discovery Sciences (DS)", EntityType: "department", RawQuote: "we're about 40 people", CallID: "c1", CallDate: "2024-03-01", Confidence: "high"},
		{EntityName: "Discovery Sciences", EntityType: "department", RawQuote: "led by Dr. Smith", CallID: "c2", CallDate: "2024-04-01", Confidence: "medium"},
	}
	agg := PreAggregate(mentions)
	if agg.Len() != 1 {
		t.Fatalf("groups=%d, want 1 (keys=%v)", agg.Len(), agg.Keys())
	}
	e, ok := agg.Get("discovery sciences")
	if !ok {
		t.Fatalf("missing group %q, keys=%v", "discovery sciences", agg.Keys())
	}
	if e.EntityName != "Discovery Sciences (DS)" {
		t.Fatalf("EntityName=%q, want %q", e.EntityName, "Discovery Sciences (DS)")
	}
	if e.EntityType != "department" {
		t.Fatalf("EntityType=%q, want department", e.EntityType)
	}
	if e.TeamSize != "40" {
		t.Fatalf("TeamSize=%q, want 40", e.TeamSize)
	}
	if len(e.Sources) != 2 {
		t.Fatalf("sources=%d, want 2", len(e.Sources))
	}
	if got := OverallConfidence(e.Sources); got != ConfidenceMedium {
		t.Fatalf("confidence=%q, want medium", got)
	}

	quality := FilterQuality(agg, 1)
	if len(quality) != 1 {
		t.Fatalf("quality=%d, want 1", len(quality))
	}
	if quality[0].ID != "discovery-sciences-ds" || quality[0].MentionCount != 2 || quality[0].Confidence != ConfidenceMedium {
		t.Fatalf("quality[0]=%+v", quality[0])
	}
}

func TestPreAggregate_SourcesPerMention(t *testing.T) {
	t.Parallel()

	agg := PreAggregate([]RawMention{
		{EntityName: "Oncology", CallIDs: []string{"a", "b", "c", "d"}, Confidence: "high"},
		{EntityName: "oncology!", Confidence: "low"},
	})
	e, ok := agg.Get("oncology")
	if !ok {
		t.Fatalf("missing oncology group, keys=%v", agg.Keys())
	}
	if len(e.Sources) != 4 {
		t.Fatalf("sources=%d, want 4 (3 capped call ids + 1 unattributed)", len(e.Sources))
	}
	for i, want := range []string{"a", "b", "c"} {
		if !e.Sources[i].HasCallID() || *e.Sources[i].CallID != want {
			t.Fatalf("source[%d]=%+v, want call id %q", i, e.Sources[i], want)
		}
	}
	if e.Sources[3].CallID != nil {
		t.Fatalf("source[3].CallID=%v, want nil", *e.Sources[3].CallID)
	}
	if e.EntityName != "oncology!" {
		t.Fatalf("EntityName=%q, want longest surface form", e.EntityName)
	}
	if e.EntityType != DefaultEntityType {
		t.Fatalf("EntityType=%q, want %q", e.EntityType, DefaultEntityType)
	}
}

func TestPreAggregate_SkipsShortAndEmpty(t *testing.T) {
	t.Parallel()

	agg := PreAggregate([]RawMention{
		{EntityName: ""},
		{EntityName: "   "},
		{EntityName: "X"},
		{EntityName: "!!"},
		{EntityName: "(DS)"},
	})
	if agg.Len() != 1 {
		t.Fatalf("groups=%v, want only the parenthetical fallback", agg.Keys())
	}
	if _, ok := agg.Get("ds"); !ok {
		t.Fatalf("keys=%v, want ds", agg.Keys())
	}
}

func TestPreAggregate_TypeMajorityAndFirstWins(t *testing.T) {
	t.Parallel()

	agg := PreAggregate([]RawMention{
		{EntityName: "Biologics", EntityType: "team", TeamSize: "12", Leader: "Ann Lee", LeaderTitle: "VP", CallID: "1"},
		{EntityName: "Biologics", EntityType: "department", RawQuote: "we have 30 people", Leader: "Bob Roe", CallID: "2"},
		{EntityName: "Biologics", EntityType: "department", RawQuote: "about 50 scientists", CallID: "3"},
		{EntityName: "Chemistry", EntityType: "team", CallID: "4"},
		{EntityName: "Chemistry", EntityType: "division", CallID: "5"},
		{EntityName: "Assays", TeamSize: "8", CallID: "6"},
	})

	bio, _ := agg.Get("biologics")
	if bio.EntityType != "department" {
		t.Fatalf("biologics type=%q, want department", bio.EntityType)
	}
	if bio.TeamSize != "30" {
		t.Fatalf("biologics team size=%q, want 30 (quoted size beats record field)", bio.TeamSize)
	}
	if bio.Leader != "Ann Lee" || bio.LeaderTitle != "VP" {
		t.Fatalf("leader=%q/%q, want first leader", bio.Leader, bio.LeaderTitle)
	}

	chem, _ := agg.Get("chemistry")
	if chem.EntityType != "team" {
		t.Fatalf("chemistry type=%q, want first seen on tie", chem.EntityType)
	}

	assays, _ := agg.Get("assays")
	if assays.TeamSize != "8" {
		t.Fatalf("assays team size=%q, want record fallback 8", assays.TeamSize)
	}

	if got := agg.Keys(); len(got) != 3 || got[0] != "biologics" || got[1] != "chemistry" || got[2] != "assays" {
		t.Fatalf("keys=%v, want first-seen order", got)
	}
}

func TestAggregation_NilSafe(t *testing.T) {
	t.Parallel()

	var agg *Aggregation
	if agg.Len() != 0 || agg.Keys() != nil || agg.Entities() != nil {
		t.Fatalf("nil aggregation should be empty")
	}
	if _, ok := agg.Get("x"); ok {
		t.Fatalf("nil aggregation Get should miss")
	}
}
