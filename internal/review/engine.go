package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/cache"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/config"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/diff"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/metrics"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/providers"
	"github.com/ILoveScratch2/LLM-Reviewer/internal/redact"
)

// Engine drives the full review pipeline: redact, parse, chunk, fan
// out to the provider, parse responses, merge. Cache, Metrics and
// Logger are optional.
type Engine struct {
	Client  providers.Client
	Cache   *cache.Cache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Config  config.Config
	Rules   *Rules
	Version string
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// chunkResult pairs a chunk's outcome with its findings. Results are
// keyed by chunk ID so correlation never depends on completion order.
type chunkResult struct {
	outcome    ChunkOutcome
	findings   []Finding
	unresolved []UnresolvedFinding
}

// Run reviews rawDiff end to end and returns the merged report. A
// non-nil error means the run could not start at all (for example the
// input is not a diff); chunk-level failures never fail the run and
// are recorded on the report instead.
func (e *Engine) Run(ctx context.Context, rawDiff string, inputs InputInfo) (*Report, error) {
	start := time.Now()
	cfg := e.Config

	if cfg.RunTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.RunTimeoutSeconds)*time.Second)
		defer cancel()
	}

	// Redaction preserves line counts, so parsing below still sees the
	// original hunk geometry.
	if cfg.Privacy.RedactSecrets {
		rawDiff = redact.Secrets(rawDiff)
	}

	opts := diff.Options{
		MaxFileBytes: cfg.MaxFileBytes,
		Exclude:      cfg.Exclude,
	}
	if len(cfg.Privacy.RedactPaths) > 0 {
		patterns := cfg.Privacy.RedactPaths
		opts.SensitivePath = func(path string) bool {
			return redact.ShouldRedactPath(path, patterns)
		}
	}
	model, err := diff.Parse(rawDiff, opts)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	parseMs := time.Since(start).Milliseconds()

	chunks := BuildChunks(model, cfg.MaxChunkTokens)
	e.logger().Info("review started",
		"files", len(model.Files),
		"skipped", len(model.Skipped),
		"chunks", len(chunks),
		"provider", cfg.Provider,
		"model", cfg.Model)

	if len(chunks) == 0 {
		return e.buildReport(inputs, model, nil, nil, Timing{
			ParseMs: parseMs,
			TotalMs: time.Since(start).Milliseconds(),
		}), nil
	}

	// New-side line sets per file, for anchoring findings.
	lineSets := make(map[string]map[int]bool, len(model.Files))
	for _, f := range model.Files {
		lineSets[f.Path] = f.NewLineSet()
	}

	llmStart := time.Now()
	results := make(map[string]chunkResult, len(chunks))
	var mu sync.Mutex

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for _, chunk := range chunks {
		g.Go(func() error {
			res := e.reviewChunk(gctx, sem, chunk, lineSets)
			mu.Lock()
			results[res.outcome.ChunkID] = res
			mu.Unlock()
			return nil
		})
	}
	// Workers record their failures instead of returning them, so one
	// bad chunk cannot cancel its siblings.
	_ = g.Wait()
	llmMs := time.Since(llmStart).Milliseconds()

	// Merge in submission order regardless of completion order.
	var merged []Finding
	var unresolved []UnresolvedFinding
	outcomes := make([]ChunkOutcome, 0, len(chunks))
	for _, chunk := range chunks {
		res, ok := results[chunk.ID]
		if !ok {
			res = chunkResult{outcome: ChunkOutcome{
				ChunkID: chunk.ID,
				Index:   chunk.Index,
				Files:   chunk.Files,
				Status:  ChunkFailed,
				Error:   "no result recorded",
			}}
		}
		outcomes = append(outcomes, res.outcome)
		merged = append(merged, res.findings...)
		unresolved = append(unresolved, res.unresolved...)
	}

	merged = ApplySeverityOverrides(merged, e.Rules)
	merged = DeduplicateFindings(merged)
	SortFindings(merged)
	merged = CapFindings(merged, cfg.MaxFindings)

	for _, f := range merged {
		e.Metrics.CountFinding(strings.ToLower(string(f.Severity)))
	}

	report := e.buildReport(inputs, model, merged, outcomes, Timing{
		ParseMs: parseMs,
		LLMMs:   llmMs,
		TotalMs: time.Since(start).Milliseconds(),
	})
	report.Unresolved = unresolved
	return report, nil
}

// reviewChunk runs one chunk through cache, provider and parser. It
// always returns a result; errors become failed outcomes.
func (e *Engine) reviewChunk(ctx context.Context, sem *semaphore.Weighted, chunk Chunk, lineSets map[string]map[int]bool) chunkResult {
	start := time.Now()
	outcome := ChunkOutcome{ChunkID: chunk.ID, Index: chunk.Index, Files: chunk.Files}

	fail := func(err error) chunkResult {
		outcome.Status = ChunkFailed
		outcome.Error = failureLabel(err)
		outcome.DurationMs = time.Since(start).Milliseconds()
		e.Metrics.CountChunk(string(ChunkFailed))
		e.logger().Warn("chunk failed", "chunk", chunk.ID, "files", chunk.Files, "error", err)
		return chunkResult{outcome: outcome}
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return fail(err)
	}
	defer sem.Release(1)

	cacheKey := cache.BuildCacheKey(e.Config.Provider, e.Config.Model, chunk.ID)
	var content string
	cached := false
	if e.Cache != nil {
		if hit, ok := e.Cache.Get(cacheKey); ok {
			content = hit
			cached = true
			e.logger().Debug("cache hit", "chunk", chunk.ID)
		}
	}

	if !cached {
		resp, err := e.Client.Complete(ctx, providers.CompletionRequest{
			System:      SystemPrompt(e.Config.Language),
			Prompt:      BuildPrompt(chunk, e.Config.MaxFindings, e.Config.FailOn, e.Rules),
			Model:       e.Config.Model,
			Temperature: e.Config.Temperature,
			MaxTokens:   e.Config.MaxTokens,
		})
		if err != nil {
			return fail(err)
		}
		content = resp.Content
		outcome.Attempts = resp.Attempts
		if e.Cache != nil {
			if err := e.Cache.Put(cacheKey, content); err != nil {
				e.logger().Debug("cache write failed", "chunk", chunk.ID, "error", err)
			}
		}
	}

	parsed, err := ParseFindings(content, chunk.ID)
	if err != nil {
		if strings.TrimSpace(content) == "" {
			return fail(err)
		}
		// Non-empty text with no parseable structure degrades to a
		// partial outcome with zero findings. Absence of issues and
		// parse failure stay distinguishable via the diagnostic.
		outcome.Status = ChunkPartial
		outcome.Error = fmt.Sprintf("unparseable response: %v", err)
		outcome.Cached = cached
		outcome.DurationMs = time.Since(start).Milliseconds()
		e.Metrics.CountChunk(string(ChunkPartial))
		e.logger().Warn("chunk response unparseable", "chunk", chunk.ID, "error", err)
		return chunkResult{outcome: outcome}
	}

	findings, unresolved := resolveFindings(parsed.Findings, lineSets)

	outcome.Status = ChunkSucceeded
	outcome.Findings = len(findings)
	outcome.Dropped = parsed.Dropped + len(unresolved)
	if outcome.Dropped > 0 {
		outcome.Status = ChunkPartial
	}
	outcome.Cached = cached
	outcome.DurationMs = time.Since(start).Milliseconds()
	e.Metrics.CountChunk(string(outcome.Status))

	return chunkResult{outcome: outcome, findings: findings, unresolved: unresolved}
}

// resolveFindings drops findings that do not anchor to lines present
// on the new side of the diff, recording why. Both ends of the range
// must resolve; a range is never coerced onto a nearby line.
func resolveFindings(findings []Finding, lineSets map[string]map[int]bool) ([]Finding, []UnresolvedFinding) {
	var kept []Finding
	var unresolved []UnresolvedFinding
	for _, f := range findings {
		set, ok := lineSets[f.File]
		if !ok {
			unresolved = append(unresolved, UnresolvedFinding{File: f.File, Lines: f.Lines, Reason: "file not in diff"})
			continue
		}
		if !set[f.Lines.End] {
			unresolved = append(unresolved, UnresolvedFinding{File: f.File, Lines: f.Lines, Reason: "anchor line not in diff"})
			continue
		}
		if !set[f.Lines.Start] {
			unresolved = append(unresolved, UnresolvedFinding{File: f.File, Lines: f.Lines, Reason: "start line not in diff"})
			continue
		}
		kept = append(kept, f)
	}
	return kept, unresolved
}

// failureLabel keeps deadline failures recognizable in reports.
func failureLabel(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return err.Error()
	}
}

func (e *Engine) buildReport(inputs InputInfo, model *diff.Model, findings []Finding, outcomes []ChunkOutcome, timing Timing) *Report {
	if findings == nil {
		findings = []Finding{}
	}
	skipped := make([]SkippedFile, 0, len(model.Skipped))
	for _, s := range model.Skipped {
		skipped = append(skipped, SkippedFile{Path: s.Path, Reason: s.Reason})
	}
	summary := ComputeSummary(findings, outcomes)
	return &Report{
		Tool:     "llm-reviewer",
		Version:  e.Version,
		RunID:    uuid.NewString(),
		Provider: e.Config.Provider,
		Model:    e.Config.Model,
		Inputs:   inputs,
		Summary:  summary,
		Partial:  summary.ChunksFailed > 0 || summary.ChunksPartial > 0,
		Findings: findings,
		Chunks:   outcomes,
		Skipped:  skipped,
		Timing:   timing,
	}
}
