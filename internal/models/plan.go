package models

import "time"

// PlanStatus represents the lifecycle state of a plan.
//
// State machine: active <-> paused -> {completed | failed}; any state may
// transition to halted (terminal). halted/completed never return to active.
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanPaused    PlanStatus = "paused"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanHalted    PlanStatus = "halted"
)

// Plan duration bounds in days. CreatePlan clamps requests into this range.
const (
	MinDurationDays = 1
	MaxDurationDays = 30
)

// Plan is the aggregate root for a multi-day autonomous work plan. It
// exclusively owns its tasks and reports; callers only ever receive deep
// copies, so external mutation cannot corrupt engine state.
type Plan struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	WorkspaceID     string         `json:"workspace_id"`
	Goal            string         `json:"goal"`
	Status          PlanStatus     `json:"status"`
	DurationDays    int            `json:"duration_days"`
	CurrentDayIndex int            `json:"current_day_index"`
	Tasks           []*Task        `json:"tasks"`
	Usage           Usage          `json:"usage"`
	Reports         []*DailyReport `json:"reports"` // most recent first
	History         []string       `json:"history"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsTerminal returns true when the plan accepts no further execution.
func (p *Plan) IsTerminal() bool {
	return p.Status == PlanCompleted || p.Status == PlanHalted
}

// TasksForDay returns the plan's tasks for one day in creation order.
func (p *Plan) TasksForDay(dayIndex int) []*Task {
	var tasks []*Task
	for _, t := range p.Tasks {
		if t.DayIndex == dayIndex {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// HasOpenTasks returns true if any task anywhere in the plan still needs work.
func (p *Plan) HasOpenTasks() bool {
	for _, t := range p.Tasks {
		if t.IsOpen() {
			return true
		}
	}
	return false
}

// EarliestOpenDay returns the lowest day index holding an open task, or -1
// if every task is settled.
func (p *Plan) EarliestOpenDay() int {
	earliest := -1
	for _, t := range p.Tasks {
		if !t.IsOpen() {
			continue
		}
		if earliest == -1 || t.DayIndex < earliest {
			earliest = t.DayIndex
		}
	}
	return earliest
}

// ClampDay clamps a day index into the plan's valid range.
func (p *Plan) ClampDay(dayIndex int) int {
	if dayIndex < 0 {
		return 0
	}
	if dayIndex > p.DurationDays-1 {
		return p.DurationDays - 1
	}
	return dayIndex
}

// Clone returns a deep copy of the plan, including tasks, reports, and history.
func (p *Plan) Clone() *Plan {
	c := *p
	c.Tasks = make([]*Task, len(p.Tasks))
	for i, t := range p.Tasks {
		c.Tasks[i] = t.Clone()
	}
	c.Reports = make([]*DailyReport, len(p.Reports))
	for i, r := range p.Reports {
		c.Reports[i] = r.Clone()
	}
	c.History = append([]string(nil), p.History...)
	return &c
}
