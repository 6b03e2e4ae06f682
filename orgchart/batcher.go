package orgchart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart/fileutils"
)

const (
	// DefaultBatchSize is the largest number of entities sent in one oracle call.
	DefaultBatchSize = 50
	// DefaultMaxTokens caps one batch response.
	DefaultMaxTokens = 4000
	// DefaultCrossBatchMaxTokens caps the cross-batch dedup response.
	DefaultCrossBatchMaxTokens = 2000

	// ParseErrorNotes is the hierarchy note of a batch whose response could not be parsed.
	ParseErrorNotes = "Parse error"

	// UnknownEntityType is used when the oracle omits an entity's type.
	UnknownEntityType = "unknown"

	responsePreviewBytes = 500
)

// Oracle outcomes reported to an OracleObserver.
const (
	OutcomeOK             = "ok"
	OutcomeEmpty          = "empty"
	OutcomeParseError     = "parse_error"
	OutcomeTransportError = "transport_error"
)

// OracleRequest is one prompt sent to the consolidation oracle.
type OracleRequest struct {
	System    string
	Prompt    string
	MaxTokens int64
}

// Oracle answers a consolidation prompt with text that should contain a ConsolidationResult
// JSON object. Implementations live in the provider package.
type Oracle interface {
	Complete(ctx context.Context, req OracleRequest) (string, error)
}

// OracleObserver is notified after every oracle call.
type OracleObserver interface {
	ObserveOracleCall(company, outcome string, elapsed time.Duration)
}

// BatchStats counts what happened to the batches of one company.
type BatchStats struct {
	Batches int
	// Failed batches returned unparseable output or a transport error and contributed nothing.
	Failed int
	// Empty batches parsed fine but returned zero entities.
	Empty int
	// CrossBatchMerged counts entities folded away by the cross-batch pass.
	CrossBatchMerged int
}

// Consolidator drives the oracle over a company's quality entities in fixed-size batches.
type Consolidator struct {
	Oracle Oracle

	SystemPrompt           string
	CrossBatchSystemPrompt string

	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// MaxTokens defaults to DefaultMaxTokens.
	MaxTokens int64

	// Delay is waited between consecutive batch calls.
	Delay time.Duration
	// Sleep defaults to a context-aware timer; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error

	// CrossBatch enables one extra conservative dedup call across batch results.
	CrossBatch bool

	Observer OracleObserver
	Logger   *zap.Logger
}

// PartitionBatches splits entities into consecutive slices of at most size elements.
func PartitionBatches(entities []QualityEntity, size int) [][]QualityEntity {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(entities) == 0 {
		return nil
	}
	out := make([][]QualityEntity, 0, (len(entities)+size-1)/size)
	for start := 0; start < len(entities); start += size {
		end := start + size
		if end > len(entities) {
			end = len(entities)
		}
		out = append(out, entities[start:end])
	}
	return out
}

// Consolidate sends every batch to the oracle and concatenates the results. A batch whose call
// or response fails contributes nothing and is counted in BatchStats.Failed; only context
// cancellation aborts the run.
func (c *Consolidator) Consolidate(ctx context.Context, company string, entities []QualityEntity) (ConsolidationResult, BatchStats, error) {
	if ctx == nil {
		return ConsolidationResult{}, BatchStats{}, errors.New("Consolidate: ctx is nil")
	}
	if c.Oracle == nil {
		return ConsolidationResult{}, BatchStats{}, errors.New("Consolidate: oracle is nil")
	}
	logger := c.logger().With(zap.String("company", company))

	out := ConsolidationResult{
		Entities:             []ConsolidatedEntity{},
		DuplicateResolutions: []DuplicateResolution{},
	}
	batches := PartitionBatches(entities, c.BatchSize)
	stats := BatchStats{Batches: len(batches)}
	if len(batches) == 0 {
		return out, stats, nil
	}

	notes := make([]string, 0, len(batches))
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return ConsolidationResult{}, stats, err
		}
		batchContext := ""
		if len(batches) > 1 {
			batchContext = fmt.Sprintf("Batch %d/%d", i+1, len(batches))
			logger.Info("consolidating batch", zap.Int("batch", i+1), zap.Int("batches", len(batches)), zap.Int("entities", len(batch)))
		}

		prompt, err := BuildBatchPrompt(company, batch, batchContext)
		if err != nil {
			return ConsolidationResult{}, stats, err
		}
		res, outcome, err := c.call(ctx, company, OracleRequest{
			System:    c.SystemPrompt,
			Prompt:    prompt,
			MaxTokens: c.maxTokens(),
		}, logger.With(zap.Int("batch", i+1)))
		if err != nil {
			return ConsolidationResult{}, stats, err
		}
		switch outcome {
		case OutcomeParseError, OutcomeTransportError:
			stats.Failed++
		case OutcomeEmpty:
			stats.Empty++
		}
		if len(batches) > 1 {
			logger.Info("batch returned", zap.Int("batch", i+1), zap.Int("entities", len(res.Entities)), zap.String("outcome", outcome))
		}

		out.Entities = append(out.Entities, res.Entities...)
		out.DuplicateResolutions = append(out.DuplicateResolutions, res.DuplicateResolutions...)
		notes = append(notes, res.HierarchyNotes)

		if i < len(batches)-1 && c.Delay > 0 {
			if err := c.sleep(ctx, c.Delay); err != nil {
				return ConsolidationResult{}, stats, err
			}
		}
	}
	out.HierarchyNotes = strings.Join(notes, "\n\n")

	if c.CrossBatch && len(batches) > 1 && len(out.Entities) > 1 {
		merged, err := c.crossBatch(ctx, company, &out, logger)
		if err != nil {
			return ConsolidationResult{}, stats, err
		}
		stats.CrossBatchMerged = merged
	}
	return out, stats, nil
}

// call runs one oracle request and classifies its outcome. The returned error is non-nil only
// when ctx is done.
func (c *Consolidator) call(ctx context.Context, company string, req OracleRequest, logger *zap.Logger) (ConsolidationResult, string, error) {
	start := time.Now()
	text, err := c.Oracle.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ConsolidationResult{}, "", ctxErr
		}
		c.observe(company, OutcomeTransportError, elapsed)
		logger.Warn("oracle call failed; batch contributes no entities", zap.Error(err))
		return ParseFailureResult(), OutcomeTransportError, nil
	}

	res, err := ParseConsolidation(text)
	if err != nil {
		c.observe(company, OutcomeParseError, elapsed)
		logger.Warn("could not parse oracle response as JSON",
			zap.Error(err),
			zap.String("response", fileutils.Truncate(text, responsePreviewBytes)),
		)
		return res, OutcomeParseError, nil
	}
	if len(res.Entities) == 0 {
		c.observe(company, OutcomeEmpty, elapsed)
		logger.Warn("oracle returned zero entities for a non-empty batch")
		return res, OutcomeEmpty, nil
	}
	c.observe(company, OutcomeOK, elapsed)
	return res, OutcomeOK, nil
}

// crossBatch asks the oracle for duplicates that straddle batches and folds them in place.
// A failed or unparseable response leaves out unchanged.
func (c *Consolidator) crossBatch(ctx context.Context, company string, out *ConsolidationResult, logger *zap.Logger) (int, error) {
	prompt, err := BuildCrossBatchPrompt(out.Entities)
	if err != nil {
		return 0, err
	}
	system := c.CrossBatchSystemPrompt
	if system == "" {
		system = c.SystemPrompt
	}
	res, outcome, err := c.call(ctx, company, OracleRequest{
		System:    system,
		Prompt:    prompt,
		MaxTokens: DefaultCrossBatchMaxTokens,
	}, logger.With(zap.String("pass", "cross_batch")))
	if err != nil {
		return 0, err
	}
	if outcome != OutcomeOK {
		return 0, nil
	}

	merged := applyCrossBatch(out, res.Entities)
	out.DuplicateResolutions = append(out.DuplicateResolutions, res.DuplicateResolutions...)
	if merged > 0 && strings.TrimSpace(res.HierarchyNotes) != "" {
		out.HierarchyNotes += "\n\n" + res.HierarchyNotes
	}
	logger.Info("cross-batch pass", zap.Int("merged", merged))
	return merged, nil
}

// applyCrossBatch folds every group of existing entities named together by one merge entity
// into the first of them, returning how many entities were removed.
func applyCrossBatch(out *ConsolidationResult, merges []ConsolidatedEntity) int {
	index := make(map[string]int, len(out.Entities))
	for i, e := range out.Entities {
		if _, dup := index[e.ID]; !dup {
			index[e.ID] = i
		}
	}

	removed := make(map[int]bool)
	redirect := make(map[string]string)
	for _, m := range merges {
		var group []int
		seen := make(map[int]bool)
		for _, id := range append([]string{m.ID}, m.OriginalIDs...) {
			i, ok := index[id]
			if !ok || seen[i] || removed[i] {
				continue
			}
			seen[i] = true
			group = append(group, i)
		}
		if len(group) < 2 {
			continue
		}
		keeper := &out.Entities[group[0]]
		if i, ok := index[m.ID]; ok && i == group[0] && m.Name != "" {
			keeper.Name = m.Name
		}
		for _, i := range group[1:] {
			keeper.OriginalIDs = appendUnique(keeper.OriginalIDs, out.Entities[i].OriginalIDs...)
			redirect[out.Entities[i].ID] = keeper.ID
			removed[i] = true
		}
	}
	if len(removed) == 0 {
		return 0
	}

	kept := make([]ConsolidatedEntity, 0, len(out.Entities)-len(removed))
	for i, e := range out.Entities {
		if removed[i] {
			continue
		}
		if e.ParentID != nil {
			if to, ok := redirect[*e.ParentID]; ok && to != e.ID {
				p := to
				e.ParentID = &p
			}
		}
		kept = append(kept, e)
	}
	out.Entities = kept
	return len(removed)
}

func appendUnique(dst []string, src ...string) []string {
	have := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		have[s] = struct{}{}
	}
	for _, s := range src {
		if _, ok := have[s]; ok {
			continue
		}
		have[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

// ParseFailureResult is the stand-in result for a batch that produced nothing usable.
func ParseFailureResult() ConsolidationResult {
	return ConsolidationResult{
		Entities:             []ConsolidatedEntity{},
		HierarchyNotes:       ParseErrorNotes,
		DuplicateResolutions: []DuplicateResolution{},
	}
}

// ParseConsolidation decodes an oracle response. It looks for a ```json fenced block first
// and falls back to the whole text. On failure it returns ParseFailureResult and the error.
//
// Entities without an id are dropped; a missing name falls back to the id, a missing type to
// "unknown", and a missing original_ids list to [id]. An explicitly empty original_ids list
// is kept empty.
func ParseConsolidation(text string) (ConsolidationResult, error) {
	var res ConsolidationResult
	if err := fileutils.DecodeModelJSON(text, &res); err != nil {
		return ParseFailureResult(), err
	}

	entities := make([]ConsolidatedEntity, 0, len(res.Entities))
	for _, e := range res.Entities {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			continue
		}
		if strings.TrimSpace(e.Name) == "" {
			e.Name = e.ID
		}
		if strings.TrimSpace(e.Type) == "" {
			e.Type = UnknownEntityType
		}
		if e.ParentID != nil && strings.TrimSpace(*e.ParentID) == "" {
			e.ParentID = nil
		}
		if e.OriginalIDs == nil {
			e.OriginalIDs = []string{e.ID}
		}
		entities = append(entities, e)
	}
	res.Entities = entities
	if res.DuplicateResolutions == nil {
		res.DuplicateResolutions = []DuplicateResolution{}
	}
	return res, nil
}

func (c *Consolidator) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Consolidator) maxTokens() int64 {
	if c.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.MaxTokens
}

func (c *Consolidator) observe(company, outcome string, elapsed time.Duration) {
	if c.Observer != nil {
		c.Observer.ObserveOracleCall(company, outcome, elapsed)
	}
}

func (c *Consolidator) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
