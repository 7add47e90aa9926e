package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/investly/adminportal/internal/roles"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRoleAudit persists one role change event into audit_logs.
	TaskRoleAudit = "rbac:role_audit"
	// TaskCacheWarm loads every role matrix into the Redis cache.
	TaskCacheWarm = "rbac:cache_warm"
)

// NewRoleAuditTask constructs an Asynq task carrying the change event.
func NewRoleAuditTask(ev roles.ChangeEvent) (*asynq.Task, error) {
	if ev.Kind == "" || ev.RoleID == "" {
		return nil, fmt.Errorf("jobs: role audit requires kind and role id")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoleAudit, data, asynq.MaxRetry(10)), nil
}

// NewCacheWarmTask constructs the periodic warm-up task.
func NewCacheWarmTask() *asynq.Task {
	return asynq.NewTask(TaskCacheWarm, nil, asynq.MaxRetry(1))
}
