package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/analysis"
	"github.com/fyrsmithlabs/lexd/internal/docstore"
	"github.com/fyrsmithlabs/lexd/internal/extraction"
	"github.com/fyrsmithlabs/lexd/internal/relationship"
)

const instrumentationName = "github.com/fyrsmithlabs/lexd/internal/job"

// ErrJobNotFound indicates no record exists for the queried key.
var ErrJobNotFound = errors.New("job: not found")

// Service owns the processing job lifecycle. Submit and Status are
// boundary-facing; Run executes the pipeline and is scheduled by a
// Runner. All state lives in the document store and every transition is
// a conditional write on the record's revision, so multiple processes
// may share one store without an in-process lock.
type Service interface {
	// Submit creates or finds the record for key. The bool reports
	// whether a fresh PENDING record was written; callers schedule a run
	// only then. A live PENDING or PROCESSING record, or a terminal
	// record without force, is returned as-is. With force a terminal
	// record is replaced by a fresh PENDING one.
	Submit(ctx context.Context, key docstore.Key, force bool) (*ProcessingJob, bool, error)

	// Run drives one PENDING job to a terminal state. The PENDING to
	// PROCESSING claim is a revision-conditional write; losing it means
	// another worker owns the job and Run returns without executing.
	// Pipeline failures are persisted as FAILED, not returned; only
	// store I/O errors propagate.
	Run(ctx context.Context, key docstore.Key, documentText, documentType string) error

	// Status is a read-only lookup, flagging stale PROCESSING records.
	Status(ctx context.Context, key docstore.Key) (*ProcessingJob, error)

	// Cancel marks a non-terminal job FAILED with a cancellation reason.
	// In-flight provider calls finish on their own; Run discards their
	// outcome when its final conditional write loses to the cancel.
	Cancel(ctx context.Context, key docstore.Key, reason string) (*ProcessingJob, error)
}

// Config configures the job service.
type Config struct {
	// Timeout bounds one whole job run (default: 5m). PROCESSING records
	// older than this are reported stale by Status.
	Timeout time.Duration
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() *Config {
	return &Config{Timeout: 5 * time.Minute}
}

// service implements the Service interface.
type service struct {
	config    *Config
	store     docstore.Store
	extractor *extraction.Extractor
	mapper    *relationship.Mapper
	builder   *analysis.Builder
	logger    *zap.Logger

	// Telemetry
	tracer           trace.Tracer
	meter            metric.Meter
	submitCounter    metric.Int64Counter
	completedCounter metric.Int64Counter
	failedCounter    metric.Int64Counter

	now func() time.Time
}

// NewService creates a new job service.
func NewService(cfg *Config, store docstore.Store, extractor *extraction.Extractor,
	mapper *relationship.Mapper, builder *analysis.Builder, logger *zap.Logger) (Service, error) {

	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultServiceConfig().Timeout
	}
	if store == nil {
		return nil, errors.New("document store is required")
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if mapper == nil {
		return nil, errors.New("relationship mapper is required")
	}
	if builder == nil {
		return nil, errors.New("analysis builder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		config:    cfg,
		store:     store,
		extractor: extractor,
		mapper:    mapper,
		builder:   builder,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
		now:       time.Now,
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	var err error

	s.submitCounter, err = s.meter.Int64Counter(
		"lexd.job.submissions_total",
		metric.WithDescription("Total number of job submissions"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		s.logger.Warn("failed to create submit counter", zap.Error(err))
	}

	s.completedCounter, err = s.meter.Int64Counter(
		"lexd.job.completed_total",
		metric.WithDescription("Total number of jobs completed"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		s.logger.Warn("failed to create completed counter", zap.Error(err))
	}

	s.failedCounter, err = s.meter.Int64Counter(
		"lexd.job.failed_total",
		metric.WithDescription("Total number of jobs failed"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		s.logger.Warn("failed to create failed counter", zap.Error(err))
	}
}

// Submit creates or finds the record for key.
func (s *service) Submit(ctx context.Context, key docstore.Key, force bool) (*ProcessingJob, bool, error) {
	ctx, span := s.tracer.Start(ctx, "job.submit",
		trace.WithAttributes(
			attribute.String("document_id", key.DocumentID),
			attribute.String("job_type", key.JobType),
			attribute.Bool("force", force),
		))
	defer span.End()

	if s.submitCounter != nil {
		s.submitCounter.Add(ctx, 1)
	}

	existing, _, err := s.load(ctx, key)
	switch {
	case errors.Is(err, ErrJobNotFound):
		return s.createFresh(ctx, span, key)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "load job")
		return nil, false, err
	case !existing.Terminal():
		// A live record makes duplicate submissions idempotent; the run
		// for it is already scheduled.
		return existing, false, nil
	case !force:
		// Terminal outcome is reported as-is; re-delivery must not
		// silently discard a completed analysis.
		return existing, false, nil
	}

	s.logger.Info("forced resubmission replaces terminal record",
		zap.String("key", key.String()),
		zap.String("previous_status", existing.Status))

	fresh := s.freshRecord(key)
	if err := s.persist(ctx, fresh); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist pending record")
		return nil, false, err
	}

	return fresh, true, nil
}

// createFresh writes the first record for a key. Losing the create race
// to a concurrent submission degrades to the idempotent duplicate path.
func (s *service) createFresh(ctx context.Context, span trace.Span, key docstore.Key) (*ProcessingJob, bool, error) {
	fresh := s.freshRecord(key)
	raw, err := encodeRecord(fresh)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.store.Create(ctx, key, raw); err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			existing, _, loadErr := s.load(ctx, key)
			if loadErr != nil {
				span.RecordError(loadErr)
				return nil, false, loadErr
			}
			return existing, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create pending record")
		return nil, false, fmt.Errorf("persist job record: %w", err)
	}

	s.logger.Info("job submitted",
		zap.String("key", key.String()),
		zap.String("status", fresh.Status))

	return fresh, true, nil
}

func (s *service) freshRecord(key docstore.Key) *ProcessingJob {
	now := s.now().UTC()
	return &ProcessingJob{
		DocumentID: key.DocumentID,
		UserID:     key.UserID,
		JobType:    key.JobType,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Run drives one PENDING job through the pipeline to a terminal state.
func (s *service) Run(ctx context.Context, key docstore.Key, documentText, documentType string) error {
	ctx, span := s.tracer.Start(ctx, "job.run",
		trace.WithAttributes(
			attribute.String("document_id", key.DocumentID),
			attribute.String("document_type", documentType),
		))
	defer span.End()

	current, revision, err := s.load(ctx, key)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if current.Status != StatusPending {
		// Another worker claimed it, or it was cancelled before start.
		s.logger.Debug("skipping run for non-pending job",
			zap.String("key", key.String()),
			zap.String("status", current.Status))
		return nil
	}

	current.Status = StatusProcessing
	current.UpdatedAt = s.now().UTC()
	claim, err := s.persistAt(ctx, current, revision)
	if err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			s.logger.Debug("lost processing claim to another worker",
				zap.String("key", key.String()))
			return nil
		}
		span.RecordError(err)
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	started := s.now()
	result, runErr := s.execute(runCtx, key.DocumentID, documentText, documentType, started)

	current.UpdatedAt = s.now().UTC()
	if runErr != nil {
		current.Status = StatusFailed
		current.Error = runErr.Error()
		current.Result = nil
	} else {
		current.Status = StatusCompleted
		current.Error = ""
		current.Result = result
	}

	// The claim revision guards the final write: a cancel or forced
	// resubmission that landed mid-run wins, and this run's outcome is
	// discarded.
	if _, err := s.persistAt(ctx, current, claim); err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			s.logger.Info("discarding run outcome, record changed during run",
				zap.String("key", key.String()))
			return nil
		}
		span.RecordError(err)
		return err
	}

	if runErr != nil {
		if s.failedCounter != nil {
			s.failedCounter.Add(ctx, 1)
		}
		span.SetStatus(codes.Error, runErr.Error())
		s.logger.Warn("job failed",
			zap.String("key", key.String()),
			zap.Error(runErr))
	} else {
		if s.completedCounter != nil {
			s.completedCounter.Add(ctx, 1)
		}
		s.logger.Info("job completed",
			zap.String("key", key.String()),
			zap.Int("clauses", len(result.ExtractedClauses)),
			zap.Int("relationships", len(result.ClauseRelationships)),
			zap.Float64("confidence", result.ConfidenceScore))
	}

	return nil
}

// execute runs extract, map and build for one document.
func (s *service) execute(ctx context.Context, documentID, documentText, documentType string,
	started time.Time) (*analysis.Result, error) {

	clauses, meta, err := s.extractor.Extract(ctx, documentID, documentText, documentType)
	if err != nil {
		return nil, fmt.Errorf("extract clauses: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("job timed out: %w", err)
	}

	rels := s.mapper.Map(clauses)
	elapsed := s.now().Sub(started)

	return s.builder.Build(documentID, documentType, clauses, rels, elapsed, meta), nil
}

// Status looks up the record for key.
func (s *service) Status(ctx context.Context, key docstore.Key) (*ProcessingJob, error) {
	current, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusProcessing && s.now().UTC().Sub(current.UpdatedAt) > s.config.Timeout {
		// The owning process likely died mid-run. Surfaced read-only so
		// operators can resubmit; the record itself is not rewritten.
		current.Stale = true
	}
	return current, nil
}

// Cancel marks a non-terminal job FAILED with a cancellation reason.
func (s *service) Cancel(ctx context.Context, key docstore.Key, reason string) (*ProcessingJob, error) {
	ctx, span := s.tracer.Start(ctx, "job.cancel",
		trace.WithAttributes(attribute.String("document_id", key.DocumentID)))
	defer span.End()

	if reason == "" {
		reason = "cancelled by caller"
	}

	for {
		current, revision, err := s.load(ctx, key)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if current.Terminal() {
			return current, nil
		}

		current.Status = StatusFailed
		current.Error = fmt.Sprintf("cancelled: %s", reason)
		current.Result = nil
		current.UpdatedAt = s.now().UTC()
		if _, err := s.persistAt(ctx, current, revision); err != nil {
			if errors.Is(err, docstore.ErrConflict) {
				// The record moved underneath; re-read and decide again.
				continue
			}
			span.RecordError(err)
			return nil, err
		}

		if s.failedCounter != nil {
			s.failedCounter.Add(ctx, 1)
		}
		s.logger.Info("job cancelled",
			zap.String("key", key.String()),
			zap.String("reason", reason))

		return current, nil
	}
}

// load fetches and decodes the record for key.
func (s *service) load(ctx context.Context, key docstore.Key) (*ProcessingJob, uint64, error) {
	raw, revision, err := s.store.FindOne(ctx, key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, 0, ErrJobNotFound
		}
		return nil, 0, fmt.Errorf("find job record: %w", err)
	}

	var record ProcessingJob
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, 0, fmt.Errorf("decode job record %s: %w", key, err)
	}
	return &record, revision, nil
}

// persist blindly upserts the record, last-write-wins. Used only to
// replace terminal records on forced resubmission.
func (s *service) persist(ctx context.Context, record *ProcessingJob) error {
	raw, err := encodeRecord(record)
	if err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, record.Key(), raw); err != nil {
		return fmt.Errorf("persist job record: %w", err)
	}
	return nil
}

// persistAt upserts the record only if the store revision still matches,
// returning the new revision. docstore.ErrConflict means the caller lost
// the transition to a concurrent writer.
func (s *service) persistAt(ctx context.Context, record *ProcessingJob, revision uint64) (uint64, error) {
	raw, err := encodeRecord(record)
	if err != nil {
		return 0, err
	}
	next, err := s.store.Update(ctx, record.Key(), raw, revision)
	if err != nil {
		if errors.Is(err, docstore.ErrConflict) || errors.Is(err, docstore.ErrNotFound) {
			return 0, docstore.ErrConflict
		}
		return 0, fmt.Errorf("persist job record: %w", err)
	}
	return next, nil
}

func encodeRecord(record *ProcessingJob) ([]byte, error) {
	record.Stale = false
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode job record: %w", err)
	}
	return raw, nil
}
