package job

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/docstore"
)

// defaultMaxConcurrent bounds simultaneous job runs per process.
const defaultMaxConcurrent = 4

// Runner schedules fire-and-forget job runs on a bounded worker pool.
// The submitting request returns as soon as the PENDING record is
// durable; the run proceeds in the background. Per-key exclusivity
// comes from the Service's status check, not from the pool.
type Runner struct {
	service Service
	logger  *zap.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a runner executing at most maxConcurrent runs at once.
func NewRunner(service Service, maxConcurrent int, logger *zap.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		service: service,
		logger:  logger,
		sem:     make(chan struct{}, maxConcurrent),
	}
}

// Dispatch schedules one run in the background. The run uses its own
// context so it outlives the triggering request; cancellation happens
// through Service.Cancel, not through ctx. Returns false after Close.
func (r *Runner) Dispatch(key docstore.Key, documentText, documentType string) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		if err := r.service.Run(context.Background(), key, documentText, documentType); err != nil {
			r.logger.Error("background job run failed",
				zap.String("key", key.String()),
				zap.Error(err))
		}
	}()

	return true
}

// Close stops accepting dispatches and waits for in-flight runs.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
