package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/nutritrack/internal/repository"
	"github.com/mamadbah2/nutritrack/internal/repository/memory"
)

// sequentialStore hides the BatchWriter of the memory store and can fail a chosen key.
type sequentialStore struct {
	inner   *memory.Store
	failKey string
}

func (s *sequentialStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, key)
}

func (s *sequentialStore) Set(ctx context.Context, key string, value []byte) error {
	if key == s.failKey {
		return errors.New("boom")
	}
	return s.inner.Set(ctx, key, value)
}

func (s *sequentialStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *sequentialStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.Keys(ctx, prefix)
}

func TestMemoryStore_Basics(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	value := []byte("hello")
	require.NoError(t, store.Set(ctx, "b", value))
	value[0] = 'j'
	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got), "stored values are copied")

	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	require.NoError(t, store.Set(ctx, "c/x", []byte("2")))
	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c/x"}, keys)

	keys, err = store.Keys(ctx, "c/")
	require.NoError(t, err)
	assert.Equal(t, []string{"c/x"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"), "deleting an absent key is not an error")
	assert.Equal(t, 2, store.Len())
}

func TestNamespaced(t *testing.T) {
	ctx := context.Background()
	base := memory.NewStore()
	alice := repository.WithNamespace(base, "users/alice/")
	bob := repository.WithNamespace(base, "users/bob/")

	require.NoError(t, alice.Set(ctx, "daily_intake_2025-01-01", []byte("a")))
	require.NoError(t, bob.Set(ctx, "daily_intake_2025-01-01", []byte("b")))

	got, err := alice.Get(ctx, "daily_intake_2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	keys, err := bob.Keys(ctx, "daily_")
	require.NoError(t, err)
	assert.Equal(t, []string{"daily_intake_2025-01-01"}, keys)

	all, err := base.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"users/alice/daily_intake_2025-01-01", "users/bob/daily_intake_2025-01-01"}, all)

	require.NoError(t, alice.SetMany(ctx, []repository.Entry{{Key: "x", Value: []byte("1")}, {Key: "y", Value: []byte("2")}}))
	_, err = base.Get(ctx, "users/alice/y")
	require.NoError(t, err)
}

func TestSetAll_SequentialStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	store := &sequentialStore{inner: memory.NewStore(), failKey: "second"}

	err := repository.SetAll(ctx, store, []repository.Entry{
		{Key: "first", Value: []byte("1")},
		{Key: "second", Value: []byte("2")},
		{Key: "third", Value: []byte("3")},
	})
	require.Error(t, err)

	_, err = store.Get(ctx, "first")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "third")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
