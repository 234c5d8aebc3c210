package models

// OutcomeStatus is the result an executor reports for one task.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
)

// TaskOutcome is what a task executor returns: whether the task completed,
// an optional human summary, and the actual resources consumed. A nil Usage
// means the engine falls back to the task's estimate.
type TaskOutcome struct {
	Status  OutcomeStatus
	Summary string
	Usage   *Usage
}
