package orgchart

import (
	"regexp"
	"sort"
	"strings"
)

// excludedTypes are entity types that describe people rather than organizational units.
var excludedTypes = map[string]struct{}{
	"contact": {},
	"person":  {},
}

// genericNamePatterns match lowercased names that are pronoun-led or too vague to be an org unit.
var genericNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^our\s`),
	regexp.MustCompile(`^my\s`),
	regexp.MustCompile(`^the\s`),
	regexp.MustCompile(`^this\s`),
	regexp.MustCompile(`^their\s`),
	regexp.MustCompile(`^your\s`),
	regexp.MustCompile(`^team is$`),
	regexp.MustCompile(`^small$`),
	regexp.MustCompile(`^big$`),
	regexp.MustCompile(`^new$`),
	regexp.MustCompile(`^\w{1,2}$`),
	regexp.MustCompile(`^contact$`),
	regexp.MustCompile(`^company$`),
}

// IsGenericName reports whether name is a generic placeholder rather than an entity name.
func IsGenericName(name string) bool {
	lower := strings.ToLower(name)
	for _, re := range genericNamePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// FilterQuality drops people, generic names and groups with fewer than minMentions sources,
// then sorts the survivors by mention count (descending, stable).
func FilterQuality(agg *Aggregation, minMentions int) []QualityEntity {
	if minMentions < 1 {
		minMentions = 1
	}
	var out []QualityEntity
	for _, e := range agg.Entities() {
		if _, skip := excludedTypes[e.EntityType]; skip {
			continue
		}
		if IsGenericName(e.EntityName) {
			continue
		}
		mentions := len(e.Sources)
		if mentions < minMentions {
			continue
		}
		out = append(out, QualityEntity{
			ID:           Slugify(e.EntityName),
			EntityName:   e.EntityName,
			EntityType:   e.EntityType,
			TeamSize:     e.TeamSize,
			Leader:       e.Leader,
			LeaderTitle:  e.LeaderTitle,
			MentionCount: mentions,
			Confidence:   OverallConfidence(e.Sources),
			AllSources:   e.Sources,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MentionCount > out[j].MentionCount
	})
	return out
}

// OverallConfidence labels a set of sources: "high" when high-confidence sources are a strict
// majority, "medium" when high plus medium reach at least half, else "low". A source without a
// label counts as medium.
func OverallConfidence(sources []Source) string {
	if len(sources) == 0 {
		return ConfidenceLow
	}
	high, medium := 0, 0
	for _, s := range sources {
		switch strings.ToLower(strings.TrimSpace(s.Confidence)) {
		case ConfidenceHigh:
			high++
		case ConfidenceMedium, "":
			medium++
		}
	}
	total := len(sources)
	switch {
	case 2*high > total:
		return ConfidenceHigh
	case 2*(high+medium) >= total:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
