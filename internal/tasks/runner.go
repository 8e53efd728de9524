// Package tasks provides the persisted running markers that keep the
// long scheduled jobs from overlapping, across goroutines and restarts.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/models"
)

// Task names used by the scheduler and the HTTP trigger endpoints.
const (
	TaskRuleEvaluation = "rule-evaluation"
	TaskMaintenance    = "collection-maintenance"
)

// ErrAlreadyRunning is returned by TryStart when the marker is held.
var ErrAlreadyRunning = fmt.Errorf("task is already running")

// pollInterval paces WaitUntilFinished's marker checks.
const pollInterval = 10 * time.Second

// Runner guards named tasks with persisted running markers.
type Runner struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewRunner creates a task runner over the given database
func NewRunner(db *models.Database, logger *logrus.Logger) *Runner {
	return &Runner{db: db, logger: logger}
}

// TryStart claims the marker of a named task. ErrAlreadyRunning when a run
// is in progress.
func (r *Runner) TryStart(name string) error {
	task, err := r.db.GetTaskRunning(name)
	if err != nil {
		return fmt.Errorf("failed to read task marker %q: %w", name, err)
	}
	if task != nil && task.Running {
		return ErrAlreadyRunning
	}

	now := time.Now()
	if err := r.db.UpsertTaskRunning(name, true, &now); err != nil {
		return fmt.Errorf("failed to claim task marker %q: %w", name, err)
	}
	return nil
}

// Finish releases the marker of a named task
func (r *Runner) Finish(name string) {
	if err := r.db.UpsertTaskRunning(name, false, nil); err != nil {
		r.logger.WithError(err).WithField("task", name).Error("Failed to release task marker")
	}
}

// IsRunning reports whether the named task currently holds its marker
func (r *Runner) IsRunning(name string) (bool, error) {
	task, err := r.db.GetTaskRunning(name)
	if err != nil {
		return false, fmt.Errorf("failed to read task marker %q: %w", name, err)
	}
	return task != nil && task.Running, nil
}

// WaitUntilFinished blocks until the named task releases its marker, polling
// the database, or until the context is done.
func (r *Runner) WaitUntilFinished(ctx context.Context, name string) error {
	for {
		running, err := r.IsRunning(name)
		if err != nil {
			return err
		}
		if !running {
			return nil
		}

		r.logger.WithField("task", name).Debug("Waiting for task to finish")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ClearStale releases every held marker. Called once at boot: a marker that
// is set before any task ran belongs to a crashed previous process.
func (r *Runner) ClearStale() error {
	tasks, err := r.db.GetAllTaskRunning()
	if err != nil {
		return fmt.Errorf("failed to list task markers: %w", err)
	}
	for _, task := range tasks {
		if !task.Running {
			continue
		}
		r.logger.WithField("task", task.Name).Warn("Clearing stale running marker from previous process")
		if err := r.db.UpsertTaskRunning(task.Name, false, nil); err != nil {
			return fmt.Errorf("failed to clear task marker %q: %w", task.Name, err)
		}
	}
	return nil
}
