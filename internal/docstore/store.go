// Package docstore provides the key-value persistence port for processing
// jobs, keyed by (document id, user id, job type). Implementations must
// give last-write-wins upsert semantics with at most one record per key.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates no record exists for the key.
var ErrNotFound = errors.New("docstore: record not found")

// ErrConflict indicates a conditional write lost: the key already exists
// (Create) or the record changed since it was read (Update).
var ErrConflict = errors.New("docstore: revision conflict")

// Key is the composite identity of one processing job record. Parts must
// not contain ':' or '.'; boundary layers validate this before keys are
// built.
type Key struct {
	DocumentID string
	UserID     string
	JobType    string
}

// String renders the key for logs and the memory store.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.DocumentID, k.UserID, k.JobType)
}

// Store is the document-store capability the state machine consumes.
// Values are opaque serialized records. Every record carries a revision
// that changes on each write; the conditional operations let multiple
// processes sharing one store make atomic state transitions without
// locks.
type Store interface {
	// Upsert creates or replaces the record, last-write-wins.
	Upsert(ctx context.Context, key Key, value []byte) error

	// Create writes the first record for key and returns its revision.
	// Fails with ErrConflict if a record already exists.
	Create(ctx context.Context, key Key, value []byte) (uint64, error)

	// Update replaces the record only if its revision still equals
	// revision, returning the new revision. Fails with ErrConflict when
	// the record changed underneath, ErrNotFound when it is gone.
	Update(ctx context.Context, key Key, value []byte, revision uint64) (uint64, error)

	// FindOne returns the record and its revision, or ErrNotFound.
	FindOne(ctx context.Context, key Key) ([]byte, uint64, error)
}
