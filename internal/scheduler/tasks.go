package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// TaskSQLMaintenance is the configuration key of the profile store maintenance task.
const TaskSQLMaintenance = "sql_maintenance"

// TaskFunc is the signature of every scheduled task. Tasks must respect ctx.
type TaskFunc func(ctx context.Context) error

// Maintainer runs storage maintenance.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps holds the dependencies available to scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  Maintainer
}

// RegisterAllTasks returns every known task keyed by its configuration name.
func RegisterAllTasks(deps TaskDeps) map[string]TaskFunc {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	tasks := map[string]TaskFunc{
		TaskSQLMaintenance: newSQLMaintenanceTask(deps),
	}
	deps.Logger.Debug("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

func newSQLMaintenanceTask(deps TaskDeps) TaskFunc {
	log := deps.Logger.With("task", TaskSQLMaintenance)

	return func(ctx context.Context) error {
		startTime := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}
		log.InfoContext(ctx, "SQL maintenance completed", "duration", time.Since(startTime))
		return nil
	}
}
