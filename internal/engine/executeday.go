package engine

import (
	"fmt"

	"github.com/harrison/autopilot/internal/guardrails"
	"github.com/harrison/autopilot/internal/models"
)

// ExecuteDayRequest carries the inputs to ExecuteDay.
type ExecuteDayRequest struct {
	PlanID   string
	DayIndex *int         // nil means the plan's current day
	Executor TaskExecutor // nil means AutoCompleteExecutor
}

// DayResult is what one ExecuteDay call produces.
type DayResult struct {
	Plan     *models.Plan
	DayIndex int
	Report   *models.DailyReport
}

// ExecuteDay runs one day's tasks through the guardrails and the executor.
//
// A denied task is marked approval_required, the plan pauses, and the rest
// of the day is left untouched for the next invocation. A failed task (or
// one whose executor returns an error) gets a compensating recovery task
// appended to the following day. When the kill switch is active the plan is
// halted immediately and no task runs. Calling ExecuteDay on a completed or
// halted plan is a hard error.
func (e *Engine) ExecuteDay(req ExecuteDayRequest) (*DayResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, ok := e.plans[req.PlanID]
	if !ok {
		return nil, fmt.Errorf("unknown plan %q", req.PlanID)
	}

	if e.guards.IsKillSwitchActive() {
		return e.haltForKillSwitch(plan), nil
	}

	if plan.IsTerminal() {
		return nil, fmt.Errorf("plan %q is %s and accepts no further execution", plan.ID, plan.Status)
	}

	// Guardrail-driven unpause: the pause may have been lifted by an
	// escalation resolution since the last call.
	if plan.Status == models.PlanPaused && !e.guards.IsPlanPaused(plan.ID) {
		plan.Status = models.PlanActive
	}

	day := plan.CurrentDayIndex
	if req.DayIndex != nil {
		day = *req.DayIndex
	}
	day = plan.ClampDay(day)

	executor := req.Executor
	if executor == nil {
		executor = AutoCompleteExecutor{}
	}

	var (
		completed, failed, blocked int
		adaptations                []string
	)

	for _, task := range plan.TasksForDay(day) {
		if task.CanSkip() {
			continue
		}

		decision := e.guards.EvaluateAction(plan.ID, task.ID, guardrails.EvaluateOptions{
			Irreversible: task.IsIrreversible,
			Estimated:    task.Estimated,
		})
		if !decision.Allow {
			reason := decision.Reason()
			if reason == "" {
				reason = "blocked by guardrails"
			}
			task.Status = models.TaskApprovalRequired
			task.Notes = reason
			plan.Status = models.PlanPaused
			blocked++
			if e.logger != nil {
				e.logger.LogTaskBlocked(*task, reason)
			}
			// Remaining tasks in the day stay untouched for the next call.
			break
		}

		now := e.clk.Now()
		task.Status = models.TaskRunning
		task.StartedAt = &now
		if e.logger != nil {
			e.logger.LogTaskStart(*task)
		}

		outcome, err := executor.Execute(plan.Clone(), task.Clone(), day)
		if err != nil || outcome.Status != models.OutcomeCompleted {
			reason := outcome.Summary
			if err != nil {
				reason = err.Error()
			}
			if reason == "" {
				reason = "task execution failed"
			}
			adaptations = append(adaptations, e.failTask(plan, task, day, reason))
			failed++
			continue
		}

		done := e.clk.Now()
		task.Status = models.TaskCompleted
		task.CompletedAt = &done
		task.Notes = outcome.Summary

		usage := task.Estimated
		if outcome.Usage != nil {
			usage = *outcome.Usage
		}
		plan.Usage.Add(usage)
		e.guards.RecordUsage(plan.ID, usage)
		completed++
		if e.logger != nil {
			e.logger.LogTaskComplete(*task)
		}
	}

	e.recomputeStatus(plan)
	e.advanceDay(plan, day)

	report := e.emitReport(plan, day, completed, failed, blocked, adaptations)
	plan.UpdatedAt = e.clk.Now()

	return &DayResult{Plan: plan.Clone(), DayIndex: day, Report: report.Clone()}, nil
}

// haltForKillSwitch short-circuits execution into the terminal halted
// status with a zero-progress report.
func (e *Engine) haltForKillSwitch(plan *models.Plan) *DayResult {
	day := plan.CurrentDayIndex
	plan.Status = models.PlanHalted
	plan.History = append(plan.History, "Plan halted: kill switch active.")

	report := &models.DailyReport{
		ID:        e.ids.NewID("report"),
		PlanID:    plan.ID,
		DayIndex:  day,
		Summary:   fmt.Sprintf("Day %d: no tasks run, kill switch active", day+1),
		CreatedAt: e.clk.Now(),
	}
	plan.Reports = append([]*models.DailyReport{report}, plan.Reports...)
	plan.UpdatedAt = e.clk.Now()

	if e.logger != nil {
		e.logger.LogDaySummary(*report)
	}
	return &DayResult{Plan: plan.Clone(), DayIndex: day, Report: report.Clone()}
}

// failTask marks the task failed and appends a compensating recovery task
// to the following day (or the last day if the failure happened there).
// Returns the adaptation note for the daily report.
func (e *Engine) failTask(plan *models.Plan, task *models.Task, day int, reason string) string {
	task.Status = models.TaskFailed
	task.Notes = reason
	if e.logger != nil {
		e.logger.LogTaskFail(*task, reason)
	}

	targetDay := day + 1
	if targetDay > plan.DurationDays-1 {
		targetDay = plan.DurationDays - 1
	}
	recovery := e.newRecoveryTask(task, day, targetDay, e.clk.Now())
	plan.Tasks = append(plan.Tasks, recovery)

	return fmt.Sprintf("Task %q failed (%s); appended %q to day %d", task.Title, reason, recovery.Title, targetDay+1)
}

// recomputeStatus derives the plan status from its tasks, preserving a
// guardrail-driven pause.
func (e *Engine) recomputeStatus(plan *models.Plan) {
	if plan.HasOpenTasks() {
		if e.guards.IsPlanPaused(plan.ID) {
			plan.Status = models.PlanPaused
		} else {
			plan.Status = models.PlanActive
		}
		return
	}

	for _, task := range plan.Tasks {
		if task.Status == models.TaskFailed {
			plan.Status = models.PlanFailed
			return
		}
	}
	plan.Status = models.PlanCompleted
}

// advanceDay moves the day pointer: an active plan jumps to the earliest
// day still holding open work, anything else clamps forward by one.
func (e *Engine) advanceDay(plan *models.Plan, executedDay int) {
	if plan.Status == models.PlanActive {
		if open := plan.EarliestOpenDay(); open >= 0 {
			plan.CurrentDayIndex = open
			return
		}
	}
	plan.CurrentDayIndex = plan.ClampDay(executedDay + 1)
}

// emitReport builds the day's report, prepends it to the plan, and appends
// the summary line to the plan history.
func (e *Engine) emitReport(plan *models.Plan, day, completed, failed, blocked int, adaptations []string) *models.DailyReport {
	report := &models.DailyReport{
		ID:             e.ids.NewID("report"),
		PlanID:         plan.ID,
		DayIndex:       day,
		CompletedTasks: completed,
		FailedTasks:    failed,
		BlockedTasks:   blocked,
		Summary:        fmt.Sprintf("Day %d: %d completed, %d failed, %d blocked", day+1, completed, failed, blocked),
		Adaptations:    adaptations,
		NextSteps:      upcomingTaskTitles(plan, 3),
		CreatedAt:      e.clk.Now(),
	}
	plan.Reports = append([]*models.DailyReport{report}, plan.Reports...)
	plan.History = append(plan.History, report.Summary)

	if e.logger != nil {
		e.logger.LogDaySummary(*report)
	}
	return report
}

// upcomingTaskTitles lists the titles of up to limit open tasks in schedule
// order.
func upcomingTaskTitles(plan *models.Plan, limit int) []string {
	var titles []string
	for day := 0; day < plan.DurationDays && len(titles) < limit; day++ {
		for _, task := range plan.TasksForDay(day) {
			if !task.IsOpen() {
				continue
			}
			titles = append(titles, task.Title)
			if len(titles) == limit {
				break
			}
		}
	}
	return titles
}
