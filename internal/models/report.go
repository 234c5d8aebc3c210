package models

import "time"

// DailyReport is the immutable record produced by one day of execution:
// outcome counts, a summary line, adaptation notes for failures, and up to a
// few upcoming task titles.
type DailyReport struct {
	ID             string    `json:"id"`
	PlanID         string    `json:"plan_id"`
	DayIndex       int       `json:"day_index"`
	CompletedTasks int       `json:"completed_tasks"`
	FailedTasks    int       `json:"failed_tasks"`
	BlockedTasks   int       `json:"blocked_tasks"`
	Summary        string    `json:"summary"`
	Adaptations    []string  `json:"adaptations,omitempty"`
	NextSteps      []string  `json:"next_steps,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Clone returns a deep copy of the report.
func (r *DailyReport) Clone() *DailyReport {
	c := *r
	c.Adaptations = append([]string(nil), r.Adaptations...)
	c.NextSteps = append([]string(nil), r.NextSteps...)
	return &c
}
