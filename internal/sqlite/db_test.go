package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{"activities", "api_keys", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	applied, err := db.AppliedMigrations()
	require.NoError(t, err)
	require.Equal(t, []string{"001_initial_schema.up.sql"}, applied)
}

// TestMigrationsAreIdempotent verifies a second run is a no-op
func TestMigrationsAreIdempotent(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.RunMigrations())
}

// TestBusyTimeout verifies concurrent writers wait instead of failing fast
func TestBusyTimeout(t *testing.T) {
	db := NewTestDB(t)

	var timeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	require.Equal(t, 5000, timeout)
}

// TestActivityStatusAndPriorityChecks verifies the nullable enum columns
func TestActivityStatusAndPriorityChecks(t *testing.T) {
	db := NewTestDB(t)

	insert := `INSERT INTO activities (id, user_id, type, agent, agent_id, content, timestamp, updated_at, status, priority)
		VALUES (?, 'u1', 'message', 'A', 'a', 'c', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, ?)`

	_, err := db.Exec(insert, "a1", nil, nil)
	require.NoError(t, err, "status and priority are optional")
	_, err = db.Exec(insert, "a2", "in-progress", "urgent")
	require.NoError(t, err)

	_, err = db.Exec(insert, "a3", "done", nil)
	require.True(t, isCheckViolation(err), "unknown status: %v", err)
	_, err = db.Exec(insert, "a4", nil, "critical")
	require.True(t, isCheckViolation(err), "unknown priority: %v", err)
}

// TestActivityTypeCheck verifies the type column rejects unknown values
func TestActivityTypeCheck(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.Exec(`INSERT INTO activities (id, user_id, type, agent, agent_id, content, timestamp, updated_at)
		VALUES ('a1', 'u1', 'bogus', 'A', 'a', 'c', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	require.True(t, isCheckViolation(err))
}
