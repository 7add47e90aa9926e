package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/investly/adminportal/internal/jobs"
	"github.com/investly/adminportal/internal/roles"
	"github.com/investly/adminportal/internal/shared"
)

// AuditWriter persists audit records.
type AuditWriter interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RoleAuditJob writes role change events to the audit log.
type RoleAuditJob struct {
	Writer  AuditWriter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskRoleAudit tasks.
func (j *RoleAuditJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("role audit: handler not configured")
	}
	var ev roles.ChangeEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskRoleAudit)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("role_id", ev.RoleID), slog.String("kind", string(ev.Kind)))
	if j.Writer == nil {
		logger.Info("role change", slog.Int64("version", ev.Version), slog.String("actor", ev.Actor))
		j.Metrics.AddAuditEvent(string(ev.Kind))
		return nil
	}
	if err := j.Writer.Record(ctx, auditLogFromEvent(ev)); err != nil {
		logger.Error("write role audit", slog.Any("error", err))
		return err
	}
	j.Metrics.AddAuditEvent(string(ev.Kind))
	return nil
}

func (j *RoleAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func auditLogFromEvent(ev roles.ChangeEvent) shared.AuditLog {
	meta := map[string]any{
		"role_name": ev.RoleName,
		"version":   ev.Version,
	}
	if ev.PageID != "" {
		meta["page_id"] = ev.PageID
		meta["action"] = ev.Action
	}
	if ev.Enabled != nil {
		meta["enabled"] = *ev.Enabled
	}
	return shared.AuditLog{
		Actor:    ev.Actor,
		Action:   string(ev.Kind),
		Entity:   "role",
		EntityID: ev.RoleID,
		Meta:     meta,
		At:       ev.At,
	}
}
