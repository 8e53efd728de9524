package models

import (
	"time"

	"github.com/timshannon/bolthold"
)

// TaskRunning is the persisted running marker of a named task. It acts as a
// cross-process mutex: a task refuses to start while its marker is set, and
// the marker survives restarts so stale flags must be cleared on boot.
type TaskRunning struct {
	ID           uint64 `boltholdKey:"ID"`
	Name         string `boltholdIndex:"Name"`
	Running      bool
	RunningSince *time.Time
}

// GetTaskRunning retrieves the marker for a named task, or nil when the task
// was never registered.
func (db *Database) GetTaskRunning(name string) (*TaskRunning, error) {
	var task TaskRunning
	err := db.store.FindOne(&task, bolthold.Where("Name").Eq(name))
	if err == bolthold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpsertTaskRunning creates or updates the marker for a named task
func (db *Database) UpsertTaskRunning(name string, running bool, since *time.Time) error {
	existing, err := db.GetTaskRunning(name)
	if err != nil {
		return err
	}
	if existing == nil {
		return db.store.Insert(bolthold.NextSequence(), &TaskRunning{
			Name:         name,
			Running:      running,
			RunningSince: since,
		})
	}
	existing.Running = running
	existing.RunningSince = since
	return db.store.Update(existing.ID, existing)
}

// GetAllTaskRunning retrieves every task marker
func (db *Database) GetAllTaskRunning() ([]*TaskRunning, error) {
	var tasks []*TaskRunning
	err := db.store.Find(&tasks, nil)
	return tasks, err
}
