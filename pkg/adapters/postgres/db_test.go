package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	prev := openDB
	openDB = func(driverName, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driverName)
		return db, nil
	}
	t.Cleanup(func() {
		openDB = prev
		_ = db.Close()
	})
	return mock
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "  ", DefaultOptions())
	assert.ErrorContains(t, err, "empty")
}

func TestConnect_PingsAndAppliesPool(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectPing()

	db, err := Connect(context.Background(), "postgres://leadflow@localhost/leads", Options{MaxOpenConns: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_PingFailure(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("refused"))

	_, err := Connect(context.Background(), "postgres://leadflow@localhost/leads", DefaultOptions())
	assert.ErrorContains(t, err, "ping database")
}

func TestMigrations_AreGooseAnnotated(t *testing.T) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		data, err := fs.ReadFile(migrationFiles, name)
		require.NoError(t, err)
		assert.Contains(t, string(data), "-- +goose Up", name)
		assert.Contains(t, string(data), "-- +goose Down", name)
	}
}

func TestMigrate_NilDatabase(t *testing.T) {
	assert.NoError(t, Migrate(context.Background(), nil))
}
