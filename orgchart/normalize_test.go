package orgchart

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeEntityName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Discovery Sciences Group": "discovery sciences",
		"Group Therapeutics":       "group therapeutics",
		"ABCD Inc.":                "abcd",
		"Group":                    "",
		"Workgroup Alpha":          "workgroup alpha",
		"Bio.Tech, Inc.":           "biotech",
		"UK Pharma Limited":        "uk pharma",
		"  Biologics  Engineering ": "biologics engineering",
		"Acme Group Inc":           "acme",
	}
	for in, want := range cases {
		if got := NormalizeEntityName(in); got != want {
			t.Fatalf("NormalizeEntityName(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestNormalizeEntityName_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Discovery Sciences Group",
		"acme group group",
		"Inc Group",
		"R&D Ops, Ltd.",
		"  spaced out  corp ",
		"Discovery Sciences (DS)",
		"",
		"!!!",
	}
	for _, in := range inputs {
		once := NormalizeEntityName(in)
		twice := NormalizeEntityName(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

// The viewer front end carries its own copy of the alias normalizer and is tested against
// the same fixture file.
func TestNormalizeEntityName_ParityFixture(t *testing.T) {
	t.Parallel()

	b, err := os.ReadFile(filepath.Join("testdata", "normalize_parity.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var cases []struct {
		Input string `json:"input"`
		Want  string `json:"want"`
	}
	if err := json.Unmarshal(b, &cases); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if len(cases) == 0 {
		t.Fatalf("fixture is empty")
	}
	for _, c := range cases {
		if got := NormalizeEntityName(c.Input); got != c.Want {
			t.Fatalf("NormalizeEntityName(%q)=%q, want %q", c.Input, got, c.Want)
		}
	}
}

func TestGroupingKey(t *testing.T) {
	t.Parallel()

	if a, b := GroupingKey("Discovery Sciences"), GroupingKey("discovery sciences!!"); a != b || a != "discovery sciences" {
		t.Fatalf("keys=%q,%q, want both %q", a, b, "discovery sciences")
	}
	if got := GroupingKey("Discovery Sciences (DS)"); got != "discovery sciences" {
		t.Fatalf("GroupingKey(parenthetical)=%q", got)
	}
	if got := GroupingKey("(DS)"); got != "ds" {
		t.Fatalf("GroupingKey(only parenthetical)=%q, want ds", got)
	}
	// Unlike the alias normalizer the grouping key keeps suffix words.
	if got := GroupingKey("ABCD Group"); got != "abcd group" {
		t.Fatalf("GroupingKey(ABCD Group)=%q", got)
	}
	if got := GroupingKey("R&D  Ops"); got != "rd ops" {
		t.Fatalf("GroupingKey(R&D  Ops)=%q", got)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Discovery Sciences (DS)":  "discovery-sciences-ds",
		"  Oncology -- R&D  ":      "oncology-rd",
		"Biologics_Engineering":    "biologicsengineering",
		"":                         "",
		"Cell & Gene Therapy Unit": "cell-gene-therapy-unit",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q)=%q, want %q", in, got, want)
		}
	}
}
