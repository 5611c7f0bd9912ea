package tasks

import (
	"context"
)

// Task names, as used under scheduler.tasks in the config file.
const (
	PostPass       = "post_pass"
	Republish      = "republish"
	SchedulePass   = "schedule_pass"
	SQLMaintenance = "sql_maintenance"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every known task keyed by its config name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		PostPass:       newPostPassTask(deps),
		Republish:      newRepublishTask(deps),
		SchedulePass:   newSchedulePassTask(deps),
		SQLMaintenance: newSQLMaintenanceTask(deps),
	}

	deps.Logger.Debug("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
