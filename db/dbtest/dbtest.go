// Package dbtest provides an in-memory SQLite database with the schema applied.
package dbtest

import (
	"testing"
	"time"

	"github.com/Dosada05/tournament-arena/db"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// New creates an in-memory SQLite database and applies migrations.
func New(t testing.TB) *sqlx.DB {
	t.Helper()

	database, err := db.Connect(db.DriverSQLite, "file::memory:", 5*time.Second)
	require.NoError(t, err, "Failed to connect to in-memory DB")

	require.NoError(t, db.MigrateInstance(database), "Failed to apply migrations")

	t.Cleanup(func() { _ = database.Close() })
	return database
}
