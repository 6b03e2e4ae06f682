package orgchart

import (
	"go.uber.org/zap"
)

// MaxMergedSources caps the provenance kept on a merged entity.
const MaxMergedSources = 10

// MergeWithSources reattaches evidence to the oracle's structure. Each consolidated entity
// pulls sources, mention counts, team size and leader from the quality entities named in its
// original_ids; ids with no matching quality entity are skipped.
func MergeWithSources(result ConsolidationResult, originals []QualityEntity, logger *zap.Logger) []MergedEntity {
	if logger == nil {
		logger = zap.NewNop()
	}
	byID := make(map[string]QualityEntity, len(originals))
	for _, o := range originals {
		byID[o.ID] = o
	}

	merged := make([]MergedEntity, 0, len(result.Entities))
	for _, ce := range result.Entities {
		originalIDs := ce.OriginalIDs
		if originalIDs == nil {
			originalIDs = []string{ce.ID}
		}

		var (
			matched       []QualityEntity
			unresolved    []string
			totalMentions int
		)
		for _, id := range originalIDs {
			o, ok := byID[id]
			if !ok {
				unresolved = append(unresolved, id)
				continue
			}
			matched = append(matched, o)
			totalMentions += o.MentionCount
		}
		if len(unresolved) > 0 {
			logger.Debug("original ids not found among quality entities",
				zap.String("entity", ce.ID), zap.Strings("ids", unresolved))
		}

		sources, withoutCallID := dedupeSources(matched)
		if withoutCallID > 0 {
			logger.Debug("sources without call id preserved",
				zap.String("entity", ce.ID), zap.Int("count", withoutCallID))
		}

		mentions := totalMentions
		if mentions == 0 {
			mentions = len(sources)
		}
		if len(sources) > MaxMergedSources {
			sources = sources[:MaxMergedSources]
		}

		confidence := ce.Confidence
		if confidence == "" {
			confidence = ConfidenceMedium
		}
		leader, leaderTitle := mostRecentLeader(matched)

		merged = append(merged, MergedEntity{
			ID:           ce.ID,
			EntityName:   ce.Name,
			EntityType:   ce.Type,
			ParentEntity: ce.ParentID,
			TeamSize:     firstTeamSize(matched),
			Leader:       leader,
			LeaderTitle:  leaderTitle,
			MentionCount: mentions,
			Confidence:   confidence,
			AllSources:   sources,
			OriginalIDs:  append([]string{}, originalIDs...),
		})
	}
	return merged
}

// dedupeSources concatenates sources in original order, keeping the first source per call id
// and every source that has no call id.
func dedupeSources(originals []QualityEntity) ([]Source, int) {
	seen := make(map[string]struct{})
	out := []Source{}
	withoutCallID := 0
	for _, o := range originals {
		for _, s := range o.AllSources {
			if !s.HasCallID() {
				out = append(out, s)
				withoutCallID++
				continue
			}
			if _, dup := seen[*s.CallID]; dup {
				continue
			}
			seen[*s.CallID] = struct{}{}
			out = append(out, s)
		}
	}
	return out, withoutCallID
}

func firstTeamSize(originals []QualityEntity) *string {
	for _, o := range originals {
		if o.TeamSize != "" {
			return strPtr(o.TeamSize)
		}
	}
	return nil
}

// mostRecentLeader picks the leader whose entity has the latest call date, compared as
// strings. The first leader seen wins ties.
func mostRecentLeader(originals []QualityEntity) (*string, *string) {
	var (
		leader, title string
		leaderDate    string
	)
	for _, o := range originals {
		if o.Leader == "" {
			continue
		}
		date := ""
		for _, s := range o.AllSources {
			if s.CallDate > date {
				date = s.CallDate
			}
		}
		if leader == "" || date > leaderDate {
			leader, title, leaderDate = o.Leader, o.LeaderTitle, date
		}
	}
	return strPtr(leader), strPtr(title)
}
