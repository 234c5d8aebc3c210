package engine

import (
	"fmt"
	"time"

	"github.com/harrison/autopilot/internal/models"
)

// defaultTaskEstimate is applied to seeded and synthesized tasks that carry
// no explicit estimate.
var defaultTaskEstimate = models.Usage{
	TokensUsed:       1500,
	APICalls:         5,
	ConnectorActions: 1,
}

func (e *Engine) newSeededTask(seed SeedTask, day int, now time.Time) *models.Task {
	estimated := defaultTaskEstimate
	if seed.Estimated != nil {
		estimated = *seed.Estimated
	}
	return &models.Task{
		ID:             e.ids.NewID("task"),
		Title:          seed.Title,
		Description:    seed.Description,
		DayIndex:       day,
		Status:         models.TaskPending,
		IsIrreversible: seed.IsIrreversible,
		Estimated:      estimated,
		CreatedAt:      now,
	}
}

// synthesizeTask generates the single default task for a day with no seed
// tasks. Day phrasing is role-aware: the first day clarifies, the last day
// synthesizes, and the days between execute numbered milestones.
func (e *Engine) synthesizeTask(goal string, day, duration int, now time.Time) *models.Task {
	var title, description string
	switch {
	case day == 0:
		title = fmt.Sprintf("Clarify constraints for %q", goal)
		description = "Establish scope, constraints, and success criteria before execution begins."
	case day == duration-1:
		title = fmt.Sprintf("Synthesize outcomes for %q", goal)
		description = "Consolidate results from earlier days into a final outcome."
	default:
		title = fmt.Sprintf("Execute milestone %d for %q", day, goal)
		description = fmt.Sprintf("Carry out milestone %d of the plan.", day)
	}
	return &models.Task{
		ID:          e.ids.NewID("task"),
		Title:       title,
		Description: description,
		DayIndex:    day,
		Status:      models.TaskPending,
		Estimated:   defaultTaskEstimate,
		CreatedAt:   now,
	}
}

// newRecoveryTask builds the compensating task appended after a failure.
// failedDay is 0-based; the title uses the human 1-based day number.
func (e *Engine) newRecoveryTask(failed *models.Task, failedDay, targetDay int, now time.Time) *models.Task {
	return &models.Task{
		ID:          e.ids.NewID("task"),
		Title:       fmt.Sprintf("Recovery loop for day %d", failedDay+1),
		Description: fmt.Sprintf("Restore baseline progress after %q failed on day %d.", failed.Title, failedDay+1),
		DayIndex:    targetDay,
		Status:      models.TaskPending,
		Estimated:   failed.Estimated,
		CreatedAt:   now,
	}
}
