package orgchart

import (
	"regexp"
	"strings"
	"unicode"
)

// maxCallIDsPerMention bounds how many provenance records a single mention can contribute.
const maxCallIDsPerMention = 3

// teamSizePatterns are tried in order; the first pattern with a match wins.
var teamSizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:about|around|approximately|roughly|close to|nearly|maybe|like|probably)?\s*(\d{1,4}(?:,\d{3})*)\s*(?:people|person|scientists|researchers|employees|team members?|members?|folks|FTEs?)`),
	regexp.MustCompile(`(?i)(\d{1,4})\s+of\s+us`),
	regexp.MustCompile(`(?i)(?:team|group|department)\s+of\s+(\d{1,4})`),
	regexp.MustCompile(`(?i)(\d{1,4})[\s-]person\s+(?:team|group|department)`),
	weAreCount,
	regexp.MustCompile(`(?i)(\d{1,4})\s*(?:to|-)\s*(\d{1,4})\s*(?:people|person|scientists)`),
}

// weAreCount needs a negative check on what follows ("we're 40 years in"), applied in code.
var weAreCount = regexp.MustCompile(`(?i)we(?:'re| are)\s+(?:about\s+)?(\d{1,4})`)

var weAreExcludedUnits = []string{"year", "month", "day", "license", "seat"}

// ExtractTeamSize returns the first team-size figure found in text, or "" when none matches.
// A range match is returned as "lo-hi".
func ExtractTeamSize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	for _, re := range teamSizePatterns {
		if re == weAreCount {
			if v := matchWeAreCount(text); v != "" {
				return v
			}
			continue
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) == 3 && m[2] != "" {
			return m[1] + "-" + m[2]
		}
		return m[1]
	}
	return ""
}

func matchWeAreCount(text string) string {
	for _, loc := range weAreCount.FindAllStringSubmatchIndex(text, -1) {
		rest := text[loc[1]:]
		if rest != "" && unicode.IsDigit(rune(rest[0])) {
			// Part of a longer number.
			continue
		}
		trimmed := strings.ToLower(strings.TrimLeftFunc(rest, unicode.IsSpace))
		excluded := false
		for _, unit := range weAreExcludedUnits {
			if strings.HasPrefix(trimmed, unit) {
				excluded = true
				break
			}
		}
		if !excluded {
			return text[loc[2]:loc[3]]
		}
	}
	return ""
}

// Aggregation is the insertion-ordered result of PreAggregate.
type Aggregation struct {
	keys     []string
	entities map[string]*AggregatedEntity
}

// Len returns the number of groups.
func (a *Aggregation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Keys returns the grouping keys in first-seen order.
func (a *Aggregation) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

// Get returns the group for key.
func (a *Aggregation) Get(key string) (*AggregatedEntity, bool) {
	if a == nil {
		return nil, false
	}
	e, ok := a.entities[key]
	return e, ok
}

// Entities returns every group in first-seen order.
func (a *Aggregation) Entities() []*AggregatedEntity {
	if a == nil {
		return nil
	}
	out := make([]*AggregatedEntity, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, a.entities[k])
	}
	return out
}

// PreAggregate groups mentions by GroupingKey and folds each group into one AggregatedEntity.
//
// Within a group the longest surface name wins (ties keep the first), the entity type is the
// most frequent contributed type (ties keep the first seen), and team size and leader are
// first-non-empty in mention order. A team size quoted in a raw quote beats the extractor's
// own team_size field, which is only used when no quote yields one.
func PreAggregate(mentions []RawMention) *Aggregation {
	agg := &Aggregation{entities: make(map[string]*AggregatedEntity)}
	fallbackSize := make(map[string]string)

	for _, m := range mentions {
		name := strings.TrimSpace(m.EntityName)
		if name == "" {
			continue
		}
		key := GroupingKey(name)
		if len(key) < 2 {
			continue
		}

		e, ok := agg.entities[key]
		if !ok {
			e = &AggregatedEntity{Key: key, typeCounts: make(map[string]int)}
			agg.entities[key] = e
			agg.keys = append(agg.keys, key)
		}

		if e.EntityName == "" || len(name) > len(e.EntityName) {
			e.EntityName = name
		}

		if t := m.EntityType; t != "" {
			if _, seen := e.typeCounts[t]; !seen {
				e.typeOrder = append(e.typeOrder, t)
			}
			e.typeCounts[t]++
		}

		if e.TeamSize == "" {
			e.TeamSize = ExtractTeamSize(m.RawQuote)
		}
		if fallbackSize[key] == "" && m.TeamSize != "" {
			fallbackSize[key] = m.TeamSize
		}

		if e.Leader == "" && m.Leader != "" {
			e.Leader = m.Leader
			e.LeaderTitle = m.LeaderTitle
		}

		ids := m.callIDs()
		if len(ids) == 0 {
			e.Sources = append(e.Sources, sourceFor(m, nil))
			continue
		}
		if len(ids) > maxCallIDsPerMention {
			ids = ids[:maxCallIDsPerMention]
		}
		for _, id := range ids {
			e.Sources = append(e.Sources, sourceFor(m, strPtr(id)))
		}
	}

	for key, e := range agg.entities {
		if e.TeamSize == "" {
			e.TeamSize = fallbackSize[key]
		}
		e.EntityType = majorityType(e.typeOrder, e.typeCounts)
		e.typeCounts = nil
		e.typeOrder = nil
	}
	return agg
}

func sourceFor(m RawMention, callID *string) Source {
	return Source{
		CallID:     callID,
		CallDate:   m.CallDate,
		RawQuote:   m.RawQuote,
		SpeakerID:  m.SpeakerID,
		Confidence: m.Confidence,
	}
}

func majorityType(order []string, counts map[string]int) string {
	best, bestCount := "", 0
	for _, t := range order {
		if c := counts[t]; c > bestCount {
			best, bestCount = t, c
		}
	}
	if best == "" {
		return DefaultEntityType
	}
	return best
}
