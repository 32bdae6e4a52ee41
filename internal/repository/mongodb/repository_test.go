package mongodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/nutritrack/internal/repository"
)

// TestRepository_Integration needs MONGODB_TEST_URI pointing at a disposable server.
func TestRepository_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB integration test: MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	dbName := fmt.Sprintf("nutritrack_test_%d", time.Now().UnixNano())
	repo, err := NewMongoDBRepository(ctx, uri, dbName)
	require.NoError(t, err)
	defer func() {
		_ = repo.client.Database(dbName).Drop(ctx)
		_ = repo.Close(ctx)
	}()

	_, err = repo.Get(ctx, "daily_intake_2025-01-01")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repository.SetAll(ctx, repo, []repository.Entry{
		{Key: "users/a.b/daily_intake_2025-01-01", Value: []byte("1")},
		{Key: "users/a.b/daily_summary_2025-01-01", Value: []byte("2")},
		{Key: "users/axb/daily_intake_2025-01-01", Value: []byte("3")},
	}))
	require.NoError(t, repo.Set(ctx, "users/a.b/daily_intake_2025-01-01", []byte("4")))

	got, err := repo.Get(ctx, "users/a.b/daily_intake_2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, "4", string(got))

	// the dot in the prefix is literal
	keys, err := repo.Keys(ctx, "users/a.b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"users/a.b/daily_intake_2025-01-01", "users/a.b/daily_summary_2025-01-01"}, keys)

	require.NoError(t, repo.Delete(ctx, "users/axb/daily_intake_2025-01-01"))
	keys, err = repo.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
