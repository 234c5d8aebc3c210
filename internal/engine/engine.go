// Package engine turns a goal and duration into a day-by-day task schedule,
// drives execution through the guardrails and an injected executor, and
// adapts the plan when work fails by inserting compensating tasks.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/harrison/autopilot/internal/clock"
	"github.com/harrison/autopilot/internal/guardrails"
	"github.com/harrison/autopilot/internal/models"
)

// Engine owns all plan state and coordinates with a single Guardrails
// instance. Methods are serialized by an internal mutex; a plan's tasks for
// one day always execute strictly in creation order.
type Engine struct {
	mu     sync.Mutex
	guards *guardrails.Guardrails
	clk    clock.Clock
	ids    clock.IDGenerator
	logger Logger
	plans  map[string]*models.Plan
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a progress logger to the engine.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine bound to the given guardrails, clock, and id
// generator.
func New(guards *guardrails.Guardrails, clk clock.Clock, ids clock.IDGenerator, opts ...Option) *Engine {
	e := &Engine{
		guards: guards,
		clk:    clk,
		ids:    ids,
		plans:  make(map[string]*models.Plan),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SeedTask is a caller-supplied task description used when creating a plan.
type SeedTask struct {
	Title          string
	Description    string
	IsIrreversible bool
	Estimated      *models.Usage // nil means the default estimate
}

// CreatePlanRequest carries the inputs to CreatePlan.
type CreatePlanRequest struct {
	UserID       string
	WorkspaceID  string
	Goal         string
	DurationDays int
	SeedTasks    map[int][]SeedTask // day index -> tasks, used verbatim when present
	Policy       *models.Policy     // nil means DefaultPolicy
}

// CreatePlan builds a plan, seeds or synthesizes one schedule entry per
// day, and registers a matching guardrail policy. The duration is clamped
// to the valid range. The returned plan is a deep copy.
func (e *Engine) CreatePlan(req CreatePlanRequest) (*models.Plan, error) {
	if req.Goal == "" {
		return nil, fmt.Errorf("plan goal is required")
	}

	policy := models.DefaultPolicy()
	if req.Policy != nil {
		if err := req.Policy.Validate(); err != nil {
			return nil, fmt.Errorf("invalid policy: %w", err)
		}
		policy = *req.Policy
	}

	duration := req.DurationDays
	if duration < models.MinDurationDays {
		duration = models.MinDurationDays
	}
	if duration > models.MaxDurationDays {
		duration = models.MaxDurationDays
	}

	now := e.clk.Now()
	plan := &models.Plan{
		ID:           e.ids.NewID("plan"),
		UserID:       req.UserID,
		WorkspaceID:  req.WorkspaceID,
		Goal:         req.Goal,
		Status:       models.PlanActive,
		DurationDays: duration,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for day := 0; day < duration; day++ {
		if seeds := req.SeedTasks[day]; len(seeds) > 0 {
			for _, seed := range seeds {
				plan.Tasks = append(plan.Tasks, e.newSeededTask(seed, day, now))
			}
			continue
		}
		plan.Tasks = append(plan.Tasks, e.synthesizeTask(req.Goal, day, duration, now))
	}

	plan.History = append(plan.History, fmt.Sprintf("Plan created: %d day(s), %d task(s)", duration, len(plan.Tasks)))

	e.mu.Lock()
	e.plans[plan.ID] = plan
	e.mu.Unlock()

	e.guards.RegisterPlan(plan.ID, policy)
	return plan.Clone(), nil
}

// GetPlan returns a deep copy of the plan.
func (e *Engine) GetPlan(planID string) (*models.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, ok := e.plans[planID]
	if !ok {
		return nil, fmt.Errorf("unknown plan %q", planID)
	}
	return plan.Clone(), nil
}

// ListPlans returns deep copies of plans matching the filters, oldest
// first. Empty filters match everything.
func (e *Engine) ListPlans(userID, workspaceID string, statuses []models.PlanStatus) []*models.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*models.Plan
	for _, plan := range e.plans {
		if userID != "" && plan.UserID != userID {
			continue
		}
		if workspaceID != "" && plan.WorkspaceID != workspaceID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, plan.Status) {
			continue
		}
		out = append(out, plan.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ResumePlan attempts to move a paused plan back to active. If the
// guardrails still consider the plan paused the paused status is
// re-asserted. Fails while the kill switch is active and for plans that
// have already finished.
func (e *Engine) ResumePlan(planID string) (*models.Plan, error) {
	if e.guards.IsKillSwitchActive() {
		return nil, fmt.Errorf("cannot resume while the kill switch is active")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	plan, ok := e.plans[planID]
	if !ok {
		return nil, fmt.Errorf("unknown plan %q", planID)
	}
	switch plan.Status {
	case models.PlanCompleted, models.PlanHalted, models.PlanFailed:
		return nil, fmt.Errorf("cannot resume plan in status %s", plan.Status)
	}

	if e.guards.IsPlanPaused(planID) {
		plan.Status = models.PlanPaused
		plan.History = append(plan.History, "Resume refused: pending escalations remain.")
	} else {
		plan.Status = models.PlanActive
		plan.History = append(plan.History, "Plan resumed.")
	}
	plan.UpdatedAt = e.clk.Now()
	return plan.Clone(), nil
}

// HaltPlan unconditionally moves the plan to the terminal halted status.
func (e *Engine) HaltPlan(planID, reason string) (*models.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, ok := e.plans[planID]
	if !ok {
		return nil, fmt.Errorf("unknown plan %q", planID)
	}

	plan.Status = models.PlanHalted
	if reason == "" {
		reason = "halted by operator"
	}
	plan.History = append(plan.History, fmt.Sprintf("Plan halted: %s", reason))
	plan.UpdatedAt = e.clk.Now()
	return plan.Clone(), nil
}

func containsStatus(statuses []models.PlanStatus, s models.PlanStatus) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}
