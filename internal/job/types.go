package job

import (
	"time"

	"github.com/fyrsmithlabs/lexd/internal/analysis"
	"github.com/fyrsmithlabs/lexd/internal/docstore"
)

// Job types.
const (
	TypeAnalysis   = "ANALYSIS"
	TypeExtraction = "EXTRACTION"
)

// Lifecycle states. PENDING and PROCESSING are transient and exist to
// make duplicate submissions idempotent; COMPLETED and FAILED are
// terminal and overwritten only by a forced resubmission.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// ValidJobType reports whether t is a known job type.
func ValidJobType(t string) bool {
	return t == TypeAnalysis || t == TypeExtraction
}

// ProcessingJob is the persisted record tracking one document's analysis
// lifecycle. Identity is (document_id, user_id, job_type); the store
// keeps at most one record per key. Mutated only by the Service.
type ProcessingJob struct {
	DocumentID string           `json:"document_id"`
	UserID     string           `json:"user_id"`
	JobType    string           `json:"job_type"`
	Status     string           `json:"status"`
	Result     *analysis.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`

	// Stale flags PROCESSING records older than the job timeout, a sign
	// the owning process died mid-run. Computed on read, never persisted.
	Stale bool `json:"stale,omitempty"`
}

// Key returns the document-store key for this record.
func (j *ProcessingJob) Key() docstore.Key {
	return docstore.Key{DocumentID: j.DocumentID, UserID: j.UserID, JobType: j.JobType}
}

// Terminal reports whether the job reached COMPLETED or FAILED.
func (j *ProcessingJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
