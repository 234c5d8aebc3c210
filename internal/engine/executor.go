package engine

import (
	"github.com/harrison/autopilot/internal/models"
)

// defaultRuntimeMinutes is what the auto-complete executor reports for a
// task when no real executor is supplied.
const defaultRuntimeMinutes = 20

// TaskExecutor performs one unit of work and reports its outcome. The
// engine treats a returned error exactly like a failed outcome.
//
// Implementations receive deep copies of the plan and task; mutating them
// has no effect on engine state.
type TaskExecutor interface {
	Execute(plan *models.Plan, task *models.Task, dayIndex int) (models.TaskOutcome, error)
}

// TaskExecutorFunc adapts a function to the TaskExecutor interface.
type TaskExecutorFunc func(plan *models.Plan, task *models.Task, dayIndex int) (models.TaskOutcome, error)

// Execute calls f.
func (f TaskExecutorFunc) Execute(plan *models.Plan, task *models.Task, dayIndex int) (models.TaskOutcome, error) {
	return f(plan, task, dayIndex)
}

// AutoCompleteExecutor is the default executor used when none is supplied:
// it completes every task using its estimated usage plus a fixed runtime.
// Useful for dry runs and tests.
type AutoCompleteExecutor struct{}

// Execute reports the task as completed with its estimated usage.
func (AutoCompleteExecutor) Execute(_ *models.Plan, task *models.Task, _ int) (models.TaskOutcome, error) {
	usage := task.Estimated
	usage.RuntimeMinutes = defaultRuntimeMinutes
	return models.TaskOutcome{
		Status:  models.OutcomeCompleted,
		Summary: "Auto-completed using estimated usage",
		Usage:   &usage,
	}, nil
}

// Logger receives execution progress events. All methods must be safe for
// a nil receiver check on the engine side; implementations need not be.
type Logger interface {
	LogTaskStart(task models.Task)
	LogTaskComplete(task models.Task)
	LogTaskFail(task models.Task, reason string)
	LogTaskBlocked(task models.Task, reason string)
	LogDaySummary(report models.DailyReport)
}
