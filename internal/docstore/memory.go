package docstore

import (
	"context"
	"sync"
)

// memoryRecord is one stored value with its write revision.
type memoryRecord struct {
	value    []byte
	revision uint64
}

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

// Upsert stores a copy of value under key, replacing any prior record.
func (s *MemoryStore) Upsert(_ context.Context, key Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.records[key.String()]
	s.records[key.String()] = memoryRecord{
		value:    cloneBytes(value),
		revision: existing.revision + 1,
	}
	return nil
}

// Create writes the first record for key, failing with ErrConflict if one
// already exists.
func (s *MemoryStore) Create(_ context.Context, key Key, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key.String()]; ok {
		return 0, ErrConflict
	}
	s.records[key.String()] = memoryRecord{value: cloneBytes(value), revision: 1}
	return 1, nil
}

// Update replaces the record only if the revision still matches.
func (s *MemoryStore) Update(_ context.Context, key Key, value []byte, revision uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[key.String()]
	if !ok {
		return 0, ErrNotFound
	}
	if existing.revision != revision {
		return 0, ErrConflict
	}
	next := memoryRecord{value: cloneBytes(value), revision: existing.revision + 1}
	s.records[key.String()] = next
	return next.revision, nil
}

// FindOne returns a copy of the record for key and its revision, or
// ErrNotFound.
func (s *MemoryStore) FindOne(_ context.Context, key Key) ([]byte, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key.String()]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return cloneBytes(record.value), record.revision, nil
}

func cloneBytes(value []byte) []byte {
	buf := make([]byte, len(value))
	copy(buf, value)
	return buf
}
