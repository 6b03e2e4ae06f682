package orgchart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoQualityEntitiesNotes is the hierarchy note written when nothing survives filtering.
const NoQualityEntitiesNotes = "No quality entities found"

// Stage counters reported to a StageObserver.
const (
	CountRaw          = "raw"
	CountAggregated   = "aggregated"
	CountQuality      = "quality"
	CountConsolidated = "consolidated"
	CountHierarchy    = "with_hierarchy"
)

// StageObserver receives entity counts as a run moves through its stages.
type StageObserver interface {
	ObserveStage(company, stage string, count int)
}

// Options tune a pipeline run.
type Options struct {
	// MinMentions is the quality filter threshold (default 1).
	MinMentions int
	// AliasPreMerge folds entities that resolve to the same canonical id before the oracle
	// sees them. Off by default; alias hits are otherwise only reported.
	AliasPreMerge bool
}

// Pipeline runs the consolidation stages for one company at a time.
type Pipeline struct {
	Consolidator *Consolidator
	// Aliases is optional; when nil or unavailable the alias stage is skipped.
	Aliases  AliasFetcher
	Options  Options
	Observer StageObserver
	Logger   *zap.Logger

	Now      func() time.Time
	NewRunID func() string
}

// DryRunStats are the counts reported without calling the oracle.
type DryRunStats struct {
	Raw        int
	Aggregated int
	Quality    int
}

// DryRun runs only the deterministic stages.
func (p *Pipeline) DryRun(set ExtractionSet) DryRunStats {
	agg := PreAggregate(set.Mentions)
	quality := FilterQuality(agg, p.Options.MinMentions)
	return DryRunStats{
		Raw:        len(set.Mentions) + set.Rejected,
		Aggregated: agg.Len(),
		Quality:    len(quality),
	}
}

// Run consolidates one company's extractions. The returned AliasReport is nil when there were
// no alias hits. Errors are *StageError values; only context cancellation or a missing
// oracle fail a run once extractions are loaded.
func (p *Pipeline) Run(ctx context.Context, company string, set ExtractionSet) (RunOutput, *AliasReport, error) {
	logger := p.logger().With(zap.String("company", company))
	now := p.now()

	out := RunOutput{
		Account:              company,
		RunID:                p.runID(),
		ConsolidatedAt:       now.Format(time.RFC3339),
		Source:               OutputSource,
		Entities:             []MergedEntity{},
		Contacts:             []any{},
		DuplicateResolutions: []DuplicateResolution{},
	}
	stats := &out.Stats
	stats.RawExtractions = len(set.Mentions) + set.Rejected
	stats.RejectedExtractions = set.Rejected
	p.observe(company, CountRaw, stats.RawExtractions)
	if set.Rejected > 0 {
		logger.Warn("rejected malformed extraction records", zap.Int("rejected", set.Rejected), zap.Strings("reasons", set.RejectReasons))
	}

	agg := PreAggregate(set.Mentions)
	stats.PreAggregated = agg.Len()
	p.observe(company, CountAggregated, stats.PreAggregated)

	quality := FilterQuality(agg, p.Options.MinMentions)
	stats.QualityFiltered = len(quality)
	p.observe(company, CountQuality, stats.QualityFiltered)
	logger.Info("prepared entities",
		zap.Int("raw", stats.RawExtractions),
		zap.Int("aggregated", stats.PreAggregated),
		zap.Int("quality", stats.QualityFiltered),
	)

	if len(quality) == 0 {
		out.HierarchyNotes = NoQualityEntitiesNotes
		if stats.RawExtractions > 0 {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("no quality entities from %d raw extractions", stats.RawExtractions))
		}
		return out, nil, nil
	}

	report, warning, err := p.resolveAliases(ctx, company, quality, now, logger)
	if err != nil {
		return RunOutput{}, nil, &StageError{Company: company, Stage: StageAlias, Err: err}
	}
	if warning != "" {
		stats.Warnings = append(stats.Warnings, warning)
	}
	if report != nil {
		stats.AliasMatches = len(report.Matches)
		if p.Options.AliasPreMerge {
			var folded int
			quality, folded = ApplyAliasPreMerge(quality, report.Matches)
			logger.Info("alias pre-merge", zap.Int("folded", folded), zap.Int("remaining", len(quality)))
		}
	}

	if p.Consolidator == nil {
		return RunOutput{}, report, &StageError{Company: company, Stage: StageConsolidate, Err: errors.New("consolidator is nil")}
	}
	result, batchStats, err := p.Consolidator.Consolidate(ctx, company, quality)
	if err != nil {
		return RunOutput{}, report, &StageError{Company: company, Stage: StageConsolidate, Err: err}
	}
	stats.Batches = batchStats.Batches
	stats.FailedBatches = batchStats.Failed
	stats.EmptyBatches = batchStats.Empty
	if batchStats.Failed > 0 {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("%d of %d oracle batches failed and contributed no entities", batchStats.Failed, batchStats.Batches))
	}
	if len(result.Entities) == 0 {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("oracle returned zero entities for %d quality entities", len(quality)))
		logger.Warn("oracle returned zero valid entities", zap.Int("quality", len(quality)))
	}

	merged := MergeWithSources(result, quality, logger)
	withParent := 0
	for _, m := range merged {
		if m.ParentEntity != nil && *m.ParentEntity != "" {
			withParent++
		}
	}
	stats.FinalConsolidated = len(merged)
	stats.WithHierarchy = withParent
	p.observe(company, CountConsolidated, stats.FinalConsolidated)
	p.observe(company, CountHierarchy, stats.WithHierarchy)

	out.Entities = merged
	out.HierarchyNotes = result.HierarchyNotes
	out.DuplicateResolutions = result.DuplicateResolutions

	logger.Info("consolidated",
		zap.Int("final", stats.FinalConsolidated),
		zap.Int("with_hierarchy", stats.WithHierarchy),
		zap.Int("duplicate_resolutions", len(out.DuplicateResolutions)),
		zap.Int("failed_batches", stats.FailedBatches),
	)
	return out, report, nil
}

// resolveAliases checks quality entities against the curated merge table. An unavailable
// store is not an error: the stage is skipped and a warning is returned instead.
func (p *Pipeline) resolveAliases(ctx context.Context, company string, quality []QualityEntity, now time.Time, logger *zap.Logger) (*AliasReport, string, error) {
	if p.Aliases == nil {
		return nil, "", nil
	}
	merges, err := p.Aliases.Fetch(ctx, company)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		logger.Warn("could not fetch merges; skipping alias check", zap.Error(err))
		return nil, fmt.Sprintf("alias store unavailable: %v", err), nil
	}

	lookup := BuildAliasLookup(merges)
	logger.Info("loaded known aliases", zap.Int("aliases", len(lookup)))
	matches := ResolveAliases(quality, lookup)
	if len(matches) == 0 {
		return nil, "", nil
	}
	report := &AliasReport{
		Company:     company,
		GeneratedAt: now.Format(time.RFC3339),
		Matches:     matches,
	}
	report.Summary.Total = len(matches)
	logger.Info("alias matches found", zap.Int("matches", len(matches)))
	return report, "", nil
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) runID() string {
	if p.NewRunID == nil {
		return uuid.NewString()
	}
	return p.NewRunID()
}

func (p *Pipeline) observe(company, stage string, count int) {
	if p.Observer != nil {
		p.Observer.ObserveStage(company, stage, count)
	}
}
