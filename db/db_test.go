package db_test

import (
	"context"
	"testing"

	"github.com/Dosada05/tournament-arena/db"
	"github.com/Dosada05/tournament-arena/db/dbtest"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateInstanceCreatesSchema(t *testing.T) {
	database := dbtest.New(t)

	var tables []string
	err := database.SelectContext(context.Background(), &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'schema_migrations' ORDER BY name`)
	require.NoError(t, err)

	assert.Subset(t, tables, []string{"match_settings", "matches", "participants", "tournaments"})

	// A second run finds nothing to apply.
	require.NoError(t, db.MigrateInstance(database))
}

func TestMigrateInstanceRejectsOtherDrivers(t *testing.T) {
	database := dbtest.New(t)
	wrapped := sqlx.NewDb(database.DB, db.DriverPostgres)
	assert.Error(t, db.MigrateInstance(wrapped))
}
