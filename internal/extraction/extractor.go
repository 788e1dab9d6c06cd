package extraction

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/lexd/internal/extraction"

// ErrExtractionFailed indicates every window failed after retries; no
// partial result could be produced.
var ErrExtractionFailed = errors.New("extraction: all windows failed")

// keyTermsAttribute is the provider attribute carrying distinguishing terms.
const keyTermsAttribute = "key_terms"

// defaultConfidence is assigned to clauses whose provider emitted no usable
// confidence. Providers without confidence must not look like strong ones.
const defaultConfidence = 0.5

// ExtractorOptions tunes retry and timeout behavior.
type ExtractorOptions struct {
	// MaxRetries is the number of retries after the first attempt per window.
	MaxRetries int
	// RetryBase is the base delay for exponential backoff between retries.
	RetryBase time.Duration
	// InvokeTimeout bounds each provider call. A hung backend call is cut
	// off and retried instead of consuming the whole job budget.
	InvokeTimeout time.Duration
}

// DefaultExtractorOptions returns the recommended retry policy.
func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		MaxRetries:    2,
		RetryBase:     500 * time.Millisecond,
		InvokeTimeout: 45 * time.Second,
	}
}

// Extractor drives the registry, chunker and provider across all windows
// of one document and yields the final ordered clause list. It holds no
// shared mutable state; concurrent Extract calls are independent.
type Extractor struct {
	registry *Registry
	provider Provider
	logger   *zap.Logger
	tracer   trace.Tracer
	opts     ExtractorOptions
}

// NewExtractor creates an extractor. Registry and provider are required.
func NewExtractor(registry *Registry, provider Provider, logger *zap.Logger, opts ExtractorOptions) (*Extractor, error) {
	if registry == nil {
		return nil, errors.New("extraction: registry is required")
	}
	if provider == nil {
		return nil, errors.New("extraction: provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultExtractorOptions().RetryBase
	}
	if opts.InvokeTimeout <= 0 {
		opts.InvokeTimeout = DefaultExtractorOptions().InvokeTimeout
	}
	return &Extractor{
		registry: registry,
		provider: provider,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		opts:     opts,
	}, nil
}

// windowResult carries one window's outcome out of the worker goroutines.
type windowResult struct {
	windowID int
	raws     []RawExtraction
	err      error
}

// Extract runs the full pipeline for one document: chunk, invoke the
// provider per window (bounded concurrency), map offsets back, dedup,
// order and score. Failed windows are retried, then dropped with a
// warning; the run fails only when every window failed.
func (e *Extractor) Extract(ctx context.Context, documentID, documentText, documentType string) ([]Clause, *Metadata, error) {
	ctx, span := e.tracer.Start(ctx, "extraction.extract")
	defer span.End()

	cfg, err := e.registry.ConfigFor(documentType)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	windows := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap).Split(documentText)
	meta := &Metadata{
		RunID:        uuid.New().String(),
		DocumentType: cfg.DocumentType,
		ModelID:      cfg.ModelID,
		WindowCount:  len(windows),
	}
	span.SetAttributes(
		attribute.String("document_id", documentID),
		attribute.String("document_type", cfg.DocumentType),
		attribute.Int("window_count", len(windows)),
	)

	if len(windows) == 0 {
		return []Clause{}, meta, nil
	}

	results := e.runWindows(ctx, cfg, windows)

	var raws []RawExtraction
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			warning := fmt.Sprintf("window %d dropped after %d attempts: %v",
				res.windowID, e.opts.MaxRetries+1, res.err)
			meta.Warnings = append(meta.Warnings, warning)
			e.logger.Warn("window dropped",
				zap.String("document_id", documentID),
				zap.Int("window_id", res.windowID),
				zap.Error(res.err),
			)
			continue
		}
		raws = append(raws, res.raws...)
	}
	meta.FailedWindows = failed

	if failed == len(windows) {
		span.RecordError(ErrExtractionFailed)
		return nil, meta, fmt.Errorf("%w: %d windows", ErrExtractionFailed, failed)
	}

	meta.RawExtractions = len(raws)
	merged := mergeExtractions(raws)
	meta.MergedClauses = len(merged)

	clauses := make([]Clause, 0, len(merged))
	for i, raw := range merged {
		clauses = append(clauses, Clause{
			ID:         fmt.Sprintf("%s-clause-%d", documentID, i),
			Type:       raw.Class,
			Text:       documentText[raw.Start:raw.End],
			KeyTerms:   keyTermsFrom(raw),
			Confidence: clauseConfidence(raw),
			Start:      raw.Start,
			End:        raw.End,
		})
	}

	span.SetAttributes(attribute.Int("clause_count", len(clauses)))
	return clauses, meta, nil
}

// runWindows invokes the provider for every window and pass, at most
// cfg.MaxParallelWindows at a time. Window-local offsets are mapped to
// absolute document offsets before results are returned. Ordering of
// completion does not matter; clauses are re-sorted afterwards.
func (e *Extractor) runWindows(ctx context.Context, cfg Config, windows []Window) []windowResult {
	sem := make(chan struct{}, cfg.MaxParallelWindows)
	results := make([]windowResult, len(windows))

	var wg sync.WaitGroup
	for i, w := range windows {
		wg.Add(1)
		go func(i int, w Window) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			raws, err := e.extractWindow(ctx, cfg, w)
			for j := range raws {
				raws[j].WindowID = w.ID
				raws[j].Start += w.Offset
				raws[j].End += w.Offset
			}
			results[i] = windowResult{windowID: w.ID, raws: raws, err: err}
		}(i, w)
	}
	wg.Wait()

	return results
}

// extractWindow runs all passes for one window, retrying each failed call
// with exponential backoff before giving up on the window.
func (e *Extractor) extractWindow(ctx context.Context, cfg Config, w Window) ([]RawExtraction, error) {
	req := InvokeRequest{
		Text:        w.Text,
		Prompt:      cfg.Prompt,
		Examples:    cfg.Examples,
		ModelID:     cfg.ModelID,
		Temperature: cfg.Temperature,
	}

	var raws []RawExtraction
	for pass := 0; pass < cfg.PassCount; pass++ {
		passRaws, err := e.invokeWithRetry(ctx, req)
		if err != nil {
			return nil, err
		}
		raws = append(raws, passRaws...)
	}
	return raws, nil
}

func (e *Extractor) invokeWithRetry(ctx context.Context, req InvokeRequest) ([]RawExtraction, error) {
	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.opts.RetryBase * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raws, err := e.invokeOnce(ctx, req)
		if err == nil {
			return raws, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// invokeOnce runs one provider call under the per-call timeout. The
// parent context still governs the whole window, so a timed-out attempt
// is retryable while a cancelled job is not.
func (e *Extractor) invokeOnce(ctx context.Context, req InvokeRequest) ([]RawExtraction, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.InvokeTimeout)
	defer cancel()
	return e.provider.Invoke(callCtx, req)
}

// termSeparator cuts key-term lists on comma/semicolon followed by space,
// so amounts like "$1,200" survive intact.
var termSeparator = regexp.MustCompile(`[,;]\s+`)

// keyTermsFrom derives the clause key-term set from provider attributes.
func keyTermsFrom(raw RawExtraction) []string {
	var terms []string
	if v, ok := raw.Attributes[keyTermsAttribute]; ok {
		terms = append(terms, termSeparator.Split(v, -1)...)
	}
	for _, k := range []string{"party", "amount", "date"} {
		if v, ok := raw.Attributes[k]; ok {
			terms = append(terms, v)
		}
	}
	return normalizeTerms(terms)
}

func clauseConfidence(raw RawExtraction) float64 {
	if raw.Confidence <= 0 {
		return defaultConfidence
	}
	if raw.Confidence > 1 {
		return 1
	}
	return raw.Confidence
}
