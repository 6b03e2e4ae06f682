package orgchart

import (
	"context"
	"sort"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/aliasstore"
)

// AliasMatchNormalized is the only match type produced today: exact equality of normalized names.
const AliasMatchNormalized = "normalized"

// AliasFetcher fetches the curated merge table for an account.
type AliasFetcher interface {
	Fetch(ctx context.Context, account string) (aliasstore.Merges, error)
}

// AliasTarget is where a known alias points.
type AliasTarget struct {
	CanonicalID string `json:"canonical_id"`
	Alias       string `json:"alias"`
}

// AliasLookup maps a normalized alias to its canonical entity.
type AliasLookup map[string]AliasTarget

// BuildAliasLookup flattens a merge table into normalized alias keys. Aliases that normalize to
// the empty string are skipped. Canonical ids are visited in sorted order and a later id wins
// a shared alias, so the result does not depend on map iteration order.
func BuildAliasLookup(merges aliasstore.Merges) AliasLookup {
	lookup := make(AliasLookup)
	ids := make([]string, 0, len(merges))
	for id := range merges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, alias := range merges[id].Aliases {
			key := NormalizeEntityName(alias)
			if key == "" {
				continue
			}
			lookup[key] = AliasTarget{CanonicalID: id, Alias: alias}
		}
	}
	return lookup
}

// ResolveAliases reports every entity whose normalized name is a known alias. It never
// changes the entity list.
func ResolveAliases(entities []QualityEntity, lookup AliasLookup) []AliasMatch {
	if len(lookup) == 0 {
		return nil
	}
	var matches []AliasMatch
	for _, e := range entities {
		target, ok := lookup[NormalizeEntityName(e.EntityName)]
		if !ok {
			continue
		}
		matches = append(matches, AliasMatch{
			ExtractedName: e.EntityName,
			ExtractedID:   e.ID,
			CanonicalID:   target.CanonicalID,
			MatchedAlias:  target.Alias,
			MatchType:     AliasMatchNormalized,
			Sources:       sourceCallIDs(e.AllSources),
		})
	}
	return matches
}

// ApplyAliasPreMerge folds entities that resolve to the same canonical id into the first of
// them (the most mentioned, given FilterQuality ordering). It returns the new list and the
// number of entities that were folded away. Entities without a match pass through unchanged.
func ApplyAliasPreMerge(entities []QualityEntity, matches []AliasMatch) ([]QualityEntity, int) {
	if len(matches) == 0 {
		return entities, 0
	}
	canonicalOf := make(map[string]string, len(matches))
	for _, m := range matches {
		canonicalOf[m.ExtractedID] = m.CanonicalID
	}

	out := make([]QualityEntity, 0, len(entities))
	keeperFor := make(map[string]int)
	folded := 0
	for _, e := range entities {
		canonical, ok := canonicalOf[e.ID]
		if !ok {
			out = append(out, e)
			continue
		}
		idx, seen := keeperFor[canonical]
		if !seen {
			keeperFor[canonical] = len(out)
			e.AllSources = append([]Source(nil), e.AllSources...)
			out = append(out, e)
			continue
		}
		keeper := &out[idx]
		keeper.AllSources = append(keeper.AllSources, e.AllSources...)
		keeper.MentionCount += e.MentionCount
		if keeper.TeamSize == "" {
			keeper.TeamSize = e.TeamSize
		}
		if keeper.Leader == "" && e.Leader != "" {
			keeper.Leader = e.Leader
			keeper.LeaderTitle = e.LeaderTitle
		}
		keeper.Confidence = OverallConfidence(keeper.AllSources)
		folded++
	}
	return out, folded
}

func sourceCallIDs(sources []Source) []string {
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.HasCallID() {
			ids = append(ids, *s.CallID)
		}
	}
	return ids
}
