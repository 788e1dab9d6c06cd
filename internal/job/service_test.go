package job

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/analysis"
	"github.com/fyrsmithlabs/lexd/internal/docstore"
	"github.com/fyrsmithlabs/lexd/internal/extraction"
	"github.com/fyrsmithlabs/lexd/internal/relationship"
)

const rentalSnippet = "This lease is between Acme Corp and Jane Doe. " +
	"Monthly rent: $1,200 due on the first. " +
	"Either party may terminate with 30 days notice. " +
	"Tenant shall maintain the premises in good condition."

// failingProvider always errors so jobs reach FAILED.
type failingProvider struct{}

func (failingProvider) Invoke(context.Context, extraction.InvokeRequest) ([]extraction.RawExtraction, error) {
	return nil, extraction.ErrProviderUnavailable
}

// countingProvider wraps another provider and counts pipeline calls.
type countingProvider struct {
	inner extraction.Provider

	mu    sync.Mutex
	calls int
}

func (p *countingProvider) Invoke(ctx context.Context, req extraction.InvokeRequest) ([]extraction.RawExtraction, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.inner.Invoke(ctx, req)
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestService(t *testing.T, store docstore.Store, provider extraction.Provider) Service {
	t.Helper()
	if provider == nil {
		provider = extraction.NewHeuristicProvider(nil)
	}
	extractor, err := extraction.NewExtractor(extraction.NewRegistry(), provider, zap.NewNop(),
		extraction.ExtractorOptions{MaxRetries: 1, RetryBase: time.Millisecond})
	require.NoError(t, err)

	svc, err := NewService(nil, store, extractor,
		relationship.NewMapper(zap.NewNop()), analysis.NewBuilder(), zap.NewNop())
	require.NoError(t, err)
	return svc
}

func testKey() docstore.Key {
	return docstore.Key{DocumentID: "doc-1", UserID: "user-1", JobType: TypeAnalysis}
}

func TestSubmit_CreatesPendingRecord(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)

	record, created, err := svc.Submit(context.Background(), testKey(), false)
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, StatusPending, record.Status)
	assert.Equal(t, "doc-1", record.DocumentID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Equal(t, record.CreatedAt, record.UpdatedAt)
}

func TestSubmit_DuplicateWhilePendingIsNotCreated(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)
	key := testKey()

	first, created, err := svc.Submit(context.Background(), key, false)
	require.NoError(t, err)
	require.True(t, created)

	// The record is still PENDING; the duplicate must report the
	// existing record and must not ask for a second run.
	second, created, err := svc.Submit(context.Background(), key, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, StatusPending, second.Status)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestSubmit_TerminalRecordReturnedWithoutForce(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := newTestService(t, store, nil)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)
	require.NoError(t, svc.Run(ctx, key, rentalSnippet, "rental"))

	record, created, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.NotNil(t, record.Result)
}

func TestSubmit_ForceResetsTerminalRecord(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := newTestService(t, store, nil)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)
	require.NoError(t, svc.Run(ctx, key, rentalSnippet, "rental"))

	record, created, err := svc.Submit(ctx, key, true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusPending, record.Status)
	assert.Nil(t, record.Result)
	assert.Empty(t, record.Error)
}

// blindFirstReadStore reports the key missing on the first read even
// though a concurrent submission already created it, forcing the caller
// into the create race.
type blindFirstReadStore struct {
	docstore.Store

	mu     sync.Mutex
	missed bool
}

func (s *blindFirstReadStore) FindOne(ctx context.Context, key docstore.Key) ([]byte, uint64, error) {
	s.mu.Lock()
	first := !s.missed
	s.missed = true
	s.mu.Unlock()
	if first {
		return nil, 0, docstore.ErrNotFound
	}
	return s.Store.FindOne(ctx, key)
}

func TestSubmit_CreateRaceDegradesToDuplicate(t *testing.T) {
	inner := docstore.NewMemoryStore()
	store := &blindFirstReadStore{Store: inner}
	svc := newTestService(t, store, nil)
	key := testKey()
	ctx := context.Background()

	// The concurrent submission's record is already in the store.
	other := newTestService(t, inner, nil)
	_, created, err := other.Submit(ctx, key, false)
	require.NoError(t, err)
	require.True(t, created)

	record, created, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, StatusPending, record.Status)
}

func TestRun_CompletesWithResult(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)
	require.NoError(t, svc.Run(ctx, key, rentalSnippet, "rental"))

	record, err := svc.Status(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)
	require.NotNil(t, record.Result)
	assert.Equal(t, "doc-1", record.Result.DocumentID)
	assert.NotEmpty(t, record.Result.ExtractedClauses)

	var financial bool
	for _, c := range record.Result.ExtractedClauses {
		if c.Type == extraction.ClauseFinancial && strings.Contains(c.Text, "$1,200") {
			financial = true
		}
	}
	assert.True(t, financial, "expected a financial clause containing $1,200")
}

func TestRun_PipelineFailureRecordsFailed(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), failingProvider{})
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)

	// Pipeline errors land in the record, not the return value.
	require.NoError(t, svc.Run(ctx, key, rentalSnippet, "rental"))

	record, err := svc.Status(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Contains(t, record.Error, "extract clauses")
	assert.Nil(t, record.Result)
}

func TestRun_SkipsNonPendingJob(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)
	require.NoError(t, svc.Run(ctx, key, rentalSnippet, "rental"))

	// A second run against the COMPLETED record is a no-op.
	require.NoError(t, svc.Run(ctx, key, "different text entirely", "rental"))

	record, err := svc.Status(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)
}

func TestRun_MissingJob(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)

	err := svc.Run(context.Background(), testKey(), rentalSnippet, "rental")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

// claimStealingStore hands out a stale PENDING snapshot once, with
// another worker's PROCESSING claim landing right behind the read. The
// caller's conditional claim must then lose.
type claimStealingStore struct {
	docstore.Store

	mu    sync.Mutex
	stole bool
}

func (s *claimStealingStore) FindOne(ctx context.Context, key docstore.Key) ([]byte, uint64, error) {
	value, revision, err := s.Store.FindOne(ctx, key)
	if err != nil {
		return value, revision, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stole {
		return value, revision, nil
	}

	var record ProcessingJob
	if json.Unmarshal(value, &record) == nil && record.Status == StatusPending {
		s.stole = true
		record.Status = StatusProcessing
		raw, _ := json.Marshal(&record)
		if _, err := s.Store.Update(ctx, key, raw, revision); err == nil {
			// The caller still sees the superseded snapshot.
			return value, revision, nil
		}
	}
	return value, revision, nil
}

func TestRun_LostClaimDoesNotExecutePipeline(t *testing.T) {
	store := &claimStealingStore{Store: docstore.NewMemoryStore()}
	provider := &countingProvider{inner: extraction.NewHeuristicProvider(nil)}
	svc := newTestService(t, store, provider)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx, key, rentalSnippet, "rental"))

	// The other worker's claim stands and this run never invoked the
	// provider.
	assert.Equal(t, 0, provider.callCount())
	record, err := svc.Status(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, record.Status)
}

// cancellingProvider cancels its own job mid-extraction.
type cancellingProvider struct {
	inner extraction.Provider
	key   docstore.Key

	mu  sync.Mutex
	svc Service
}

func (p *cancellingProvider) Invoke(ctx context.Context, req extraction.InvokeRequest) ([]extraction.RawExtraction, error) {
	p.mu.Lock()
	svc := p.svc
	p.mu.Unlock()
	if svc != nil {
		if _, err := svc.Cancel(context.Background(), p.key, "mid-flight"); err != nil {
			return nil, err
		}
	}
	return p.inner.Invoke(ctx, req)
}

func TestRun_CancelDuringPipelineWins(t *testing.T) {
	provider := &cancellingProvider{
		inner: extraction.NewHeuristicProvider(nil),
		key:   testKey(),
	}
	svc := newTestService(t, docstore.NewMemoryStore(), provider)
	provider.mu.Lock()
	provider.svc = svc
	provider.mu.Unlock()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, provider.key, false)
	require.NoError(t, err)

	// The pipeline finishes normally, but its final conditional write
	// must lose to the cancellation that landed during the run.
	require.NoError(t, svc.Run(ctx, provider.key, rentalSnippet, "rental"))

	record, err := svc.Status(ctx, provider.key)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, "cancelled: mid-flight", record.Error)
	assert.Nil(t, record.Result)
}

func TestStatus_MissingKey(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)

	_, err := svc.Status(context.Background(), testKey())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStatus_FlagsStaleProcessingRecord(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := newTestService(t, store, nil)
	impl := svc.(*service)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)

	// Simulate a crash mid-run: a PROCESSING record far older than the
	// job timeout.
	record, revision, err := impl.load(ctx, key)
	require.NoError(t, err)
	record.Status = StatusProcessing
	record.UpdatedAt = time.Now().UTC().Add(-impl.config.Timeout - time.Minute)
	_, err = impl.persistAt(ctx, record, revision)
	require.NoError(t, err)

	got, err := svc.Status(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.True(t, got.Stale)
}

func TestCancel_MarksFailedWithReason(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)

	record, err := svc.Cancel(ctx, key, "superseded upload")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, "cancelled: superseded upload", record.Error)
}

func TestCancel_TerminalRecordUntouched(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)
	require.NoError(t, svc.Run(ctx, key, rentalSnippet, "rental"))

	record, err := svc.Cancel(ctx, key, "too late")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.NotNil(t, record.Result)
}

func TestRun_CancelledJobOutcomeDiscarded(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := newTestService(t, store, nil)
	impl := svc.(*service)
	key := testKey()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, key, false)
	require.NoError(t, err)

	// A cancellation that wins the race leaves a terminal record; Run
	// must not overwrite it with its own outcome.
	_, err = svc.Cancel(ctx, key, "abandoned")
	require.NoError(t, err)

	require.NoError(t, svc.Run(ctx, key, rentalSnippet, "rental"))

	record, _, err := impl.load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, "cancelled: abandoned", record.Error)
}

func TestNewService_Validation(t *testing.T) {
	extractor, err := extraction.NewExtractor(extraction.NewRegistry(),
		extraction.NewHeuristicProvider(nil), zap.NewNop(), extraction.DefaultExtractorOptions())
	require.NoError(t, err)

	_, err = NewService(nil, nil, extractor, relationship.NewMapper(nil), analysis.NewBuilder(), zap.NewNop())
	assert.Error(t, err)

	_, err = NewService(nil, docstore.NewMemoryStore(), nil, relationship.NewMapper(nil), analysis.NewBuilder(), zap.NewNop())
	assert.Error(t, err)
}

func TestValidJobType(t *testing.T) {
	assert.True(t, ValidJobType(TypeAnalysis))
	assert.True(t, ValidJobType(TypeExtraction))
	assert.False(t, ValidJobType("REPORT"))
	assert.False(t, ValidJobType(""))
}

func TestLoad_WrapsStoreErrors(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore(), nil)
	impl := svc.(*service)

	_, _, err := impl.load(context.Background(), testKey())
	assert.True(t, errors.Is(err, ErrJobNotFound))
}
