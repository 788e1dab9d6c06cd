package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpsertAndFindOne(t *testing.T) {
	store := NewMemoryStore()
	key := Key{DocumentID: "doc-1", UserID: "user-1", JobType: "ANALYSIS"}

	require.NoError(t, store.Upsert(context.Background(), key, []byte(`{"status":"PENDING"}`)))

	got, _, err := store.FindOne(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"status":"PENDING"}`), got)
}

func TestMemoryStore_FindOneMissing(t *testing.T) {
	store := NewMemoryStore()

	_, _, err := store.FindOne(context.Background(), Key{DocumentID: "doc-x", UserID: "u", JobType: "ANALYSIS"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	store := NewMemoryStore()
	key := Key{DocumentID: "doc-1", UserID: "user-1", JobType: "ANALYSIS"}

	require.NoError(t, store.Upsert(context.Background(), key, []byte("first")))
	require.NoError(t, store.Upsert(context.Background(), key, []byte("second")))

	got, _, err := store.FindOne(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestMemoryStore_CreateOnlyOnce(t *testing.T) {
	store := NewMemoryStore()
	key := Key{DocumentID: "doc-1", UserID: "user-1", JobType: "ANALYSIS"}

	revision, err := store.Create(context.Background(), key, []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), revision)

	_, err = store.Create(context.Background(), key, []byte("second"))
	assert.ErrorIs(t, err, ErrConflict)

	got, _, err := store.FindOne(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestMemoryStore_UpdateRequiresMatchingRevision(t *testing.T) {
	store := NewMemoryStore()
	key := Key{DocumentID: "doc-1", UserID: "user-1", JobType: "ANALYSIS"}
	ctx := context.Background()

	revision, err := store.Create(ctx, key, []byte("first"))
	require.NoError(t, err)

	next, err := store.Update(ctx, key, []byte("second"), revision)
	require.NoError(t, err)
	assert.Greater(t, next, revision)

	// Writing with the superseded revision loses.
	_, err = store.Update(ctx, key, []byte("stale"), revision)
	assert.ErrorIs(t, err, ErrConflict)

	got, _, err := store.FindOne(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestMemoryStore_UpdateMissingKey(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Update(context.Background(),
		Key{DocumentID: "ghost", UserID: "u", JobType: "ANALYSIS"}, []byte("x"), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RevisionAdvancesOnEveryWrite(t *testing.T) {
	store := NewMemoryStore()
	key := Key{DocumentID: "doc-1", UserID: "user-1", JobType: "ANALYSIS"}
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, key, []byte("a")))
	_, first, err := store.FindOne(ctx, key)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, key, []byte("b")))
	_, second, err := store.FindOne(ctx, key)
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestMemoryStore_KeysAreDistinct(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, Key{DocumentID: "doc-1", UserID: "alice", JobType: "ANALYSIS"}, []byte("a")))
	require.NoError(t, store.Upsert(ctx, Key{DocumentID: "doc-1", UserID: "bob", JobType: "ANALYSIS"}, []byte("b")))
	require.NoError(t, store.Upsert(ctx, Key{DocumentID: "doc-1", UserID: "alice", JobType: "EXTRACTION"}, []byte("c")))

	got, _, err := store.FindOne(ctx, Key{DocumentID: "doc-1", UserID: "alice", JobType: "ANALYSIS"})
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()
	key := Key{DocumentID: "doc-1", UserID: "user-1", JobType: "ANALYSIS"}

	value := []byte("original")
	require.NoError(t, store.Upsert(context.Background(), key, value))
	value[0] = 'X'

	got, _, err := store.FindOne(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, _, err := store.FindOne(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestNATSKey(t *testing.T) {
	key := Key{DocumentID: "doc-1", UserID: "user-1", JobType: "ANALYSIS"}
	assert.Equal(t, "doc-1.user-1.ANALYSIS", natsKey(key))
	assert.Equal(t, "doc-1:user-1:ANALYSIS", key.String())
}
