package shared

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type recordingExecer struct {
	calls []execCall
}

func (r *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.calls = append(r.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestAuditLoggerRecord(t *testing.T) {
	db := &recordingExecer{}
	logger := NewAuditLogger(db)
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	err := logger.Record(context.Background(), AuditLog{
		Actor:    "super_admin",
		Action:   "role.deleted",
		Entity:   "role",
		EntityID: "manager",
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)
	args := db.calls[0].args
	assert.Equal(t, "super_admin", args[0])
	assert.Equal(t, []byte("{}"), args[4])
	assert.Equal(t, &at, args[5])

	require.NoError(t, logger.Record(context.Background(), AuditLog{Action: "a", Entity: "role", EntityID: "x"}))
	assert.Nil(t, db.calls[1].args[5])
}

func TestAuditLoggerRejectsIncompleteLogs(t *testing.T) {
	logger := NewAuditLogger(&recordingExecer{})
	assert.Error(t, logger.Record(context.Background(), AuditLog{Action: "role.created"}))

	var nilLogger *AuditLogger
	assert.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
	assert.Error(t, nilLogger.EnsureSchema(context.Background()))
}
