package models

import (
	"errors"
	"time"
)

// TaskStatus represents the execution state of a single task.
type TaskStatus string

const (
	TaskPending          TaskStatus = "pending"
	TaskRunning          TaskStatus = "running"
	TaskCompleted        TaskStatus = "completed"
	TaskFailed           TaskStatus = "failed"
	TaskSkipped          TaskStatus = "skipped"
	TaskApprovalRequired TaskStatus = "approval_required"
)

// Task is a single unit of work belonging to exactly one plan and one day.
// DayIndex is 0-based and never changes after creation. Tasks are created at
// plan-creation time or appended later as compensating work after a failure.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	DayIndex       int        `json:"day_index"`
	Status         TaskStatus `json:"status"`
	IsIrreversible bool       `json:"is_irreversible,omitempty"`
	Estimated      Usage      `json:"estimated"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Validate checks that the task has the fields every task needs.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Title == "" {
		return errors.New("task title is required")
	}
	if t.DayIndex < 0 {
		return errors.New("task day index must be non-negative")
	}
	return nil
}

// IsOpen returns true if the task still needs work: it has neither finished
// nor been skipped.
func (t *Task) IsOpen() bool {
	switch t.Status {
	case TaskPending, TaskRunning, TaskApprovalRequired:
		return true
	}
	return false
}

// CanSkip returns true if execution may pass over this task.
func (t *Task) CanSkip() bool {
	return t.Status == TaskCompleted || t.Status == TaskSkipped
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}
