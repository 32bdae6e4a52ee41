package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/nutritrack/internal/repository"
)

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "db", "nutritrack.db"), nil)
	require.NoError(t, err)
	defer store.Close(ctx)

	_, err = store.Get(ctx, "daily_intake_2025-01-01")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.Set(ctx, "daily_intake_2025-01-01", []byte(`{"day":"2025-01-01"}`)))
	require.NoError(t, store.Set(ctx, "daily_intake_2025-01-01", []byte(`{"day":"2025-01-01","meals":[]}`)))

	got, err := store.Get(ctx, "daily_intake_2025-01-01")
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2025-01-01","meals":[]}`, string(got))

	require.NoError(t, store.SetMany(ctx, []repository.Entry{
		{Key: "users/bob/daily_summary_2025-01-01", Value: []byte("{}")},
		{Key: "daily_summary_2025-01-01", Value: []byte("{}")},
	}))

	keys, err := store.Keys(ctx, "daily_")
	require.NoError(t, err)
	assert.Equal(t, []string{"daily_intake_2025-01-01", "daily_summary_2025-01-01"}, keys)

	keys, err = store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	require.NoError(t, store.Delete(ctx, "daily_intake_2025-01-01"))
	_, err = store.Get(ctx, "daily_intake_2025-01-01")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nutritrack.db")

	first, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", []byte("v")))
	require.NoError(t, first.Close(ctx))

	second, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer second.Close(ctx)
	got, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestPostgres_GetUsesNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db, DialectPostgres, nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_entries WHERE key = $1")).
		WithArgs("usage_quota_alice").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"count":2}`)))

	got, err := store.Get(ctx, "usage_quota_alice")
	require.NoError(t, err)
	assert.Equal(t, `{"count":2}`, string(got))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_entries WHERE key = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetManyCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db, DialectPostgres, nil)
	store.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, $3)")).
		WithArgs("daily_intake_2025-01-01", []byte("a"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_entries")).
		WithArgs("daily_summary_2025-01-01", []byte("b"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = store.SetMany(ctx, []repository.Entry{
		{Key: "daily_intake_2025-01-01", Value: []byte("a")},
		{Key: "daily_summary_2025-01-01", Value: []byte("b")},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetManyRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db, DialectPostgres, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_entries")).
		WithArgs("daily_intake_2025-01-01", []byte("a"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_entries")).
		WithArgs("daily_summary_2025-01-01", []byte("b"), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.SetMany(ctx, []repository.Entry{
		{Key: "daily_intake_2025-01-01", Value: []byte("a")},
		{Key: "daily_summary_2025-01-01", Value: []byte("b")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily_summary_2025-01-01")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	lite := &Store{dialect: DialectSQLite}

	q := "SELECT key FROM kv_entries WHERE substr(key, 1, ?) = ?"
	assert.Equal(t, "SELECT key FROM kv_entries WHERE substr(key, 1, $1) = $2", pg.bind(q))
	assert.Equal(t, q, lite.bind(q))
}
