package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// NATSStoreConfig configures the JetStream key-value backed store.
type NATSStoreConfig struct {
	// Bucket is the key-value bucket name. Created on first use if absent.
	Bucket string
}

// DefaultNATSStoreConfig returns the default bucket configuration.
func DefaultNATSStoreConfig() NATSStoreConfig {
	return NATSStoreConfig{Bucket: "lexd-jobs"}
}

// NATSStore persists job records in a NATS JetStream key-value bucket.
// History is kept at 1 so every Upsert is a plain last-write-wins
// replacement.
type NATSStore struct {
	kv     jetstream.KeyValue
	logger *zap.Logger
}

// NewNATSStore binds (or creates) the configured bucket on the given
// connection.
func NewNATSStore(ctx context.Context, nc *nats.Conn, cfg NATSStoreConfig, logger *zap.Logger) (*NATSStore, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultNATSStoreConfig().Bucket
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "lexd document analysis job records",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("bind key-value bucket %q: %w", cfg.Bucket, err)
	}

	logger.Info("bound job record bucket", zap.String("bucket", cfg.Bucket))
	return &NATSStore{kv: kv, logger: logger}, nil
}

// Upsert replaces the record for key.
func (s *NATSStore) Upsert(ctx context.Context, key Key, value []byte) error {
	if _, err := s.kv.Put(ctx, natsKey(key), value); err != nil {
		return fmt.Errorf("put job record %s: %w", key, err)
	}
	return nil
}

// Create writes the first record for key, mapping an existing key to
// ErrConflict.
func (s *NATSStore) Create(ctx context.Context, key Key, value []byte) (uint64, error) {
	revision, err := s.kv.Create(ctx, natsKey(key), value)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("create job record %s: %w", key, err)
	}
	return revision, nil
}

// Update replaces the record only if the bucket revision still matches,
// mapping a lost race to ErrConflict.
func (s *NATSStore) Update(ctx context.Context, key Key, value []byte, revision uint64) (uint64, error) {
	next, err := s.kv.Update(ctx, natsKey(key), value, revision)
	if err != nil {
		switch {
		case errors.Is(err, jetstream.ErrKeyExists):
			return 0, ErrConflict
		case errors.Is(err, jetstream.ErrKeyNotFound):
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("update job record %s: %w", key, err)
	}
	return next, nil
}

// FindOne fetches the record for key, mapping absent keys to ErrNotFound.
func (s *NATSStore) FindOne(ctx context.Context, key Key) ([]byte, uint64, error) {
	entry, err := s.kv.Get(ctx, natsKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get job record %s: %w", key, err)
	}
	return entry.Value(), entry.Revision(), nil
}

// natsKey renders the composite key with '.' separators, the token
// delimiter NATS key-value subjects require. Key parts are validated at
// the boundary to contain neither ':' nor '.'.
func natsKey(key Key) string {
	return strings.Join([]string{key.DocumentID, key.UserID, key.JobType}, ".")
}
