// Package guardrails is the single authority deciding whether a proposed
// action under a plan may proceed. It owns per-plan policy, running resource
// usage, pause state, approved irreversible actions, and the kill switch.
//
// Denials are returned as data, never as errors: every evaluation resolves
// to an allow/deny Decision, and a deny carries the escalation awaiting
// human review. Only true misuse (unknown escalation ids, resolving an
// already-resolved escalation) produces an error.
package guardrails

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrison/autopilot/internal/clock"
	"github.com/harrison/autopilot/internal/models"
)

// DecisionRecorder receives every guardrail decision and resolution, e.g.
// for an audit trail. Implementations must not call back into Guardrails.
type DecisionRecorder interface {
	RecordDecision(planID, actionID string, allowed bool, escalationType models.EscalationType, reason string, at time.Time)
	RecordResolution(esc *models.Escalation)
}

// EvaluateOptions carries the per-action inputs to EvaluateAction.
type EvaluateOptions struct {
	Irreversible bool
	Estimated    models.Usage
}

// Decision is the outcome of evaluating one action. Exactly one of the
// following holds: the action is allowed, or it is denied with the
// escalation (if any) explaining why.
type Decision struct {
	Allow               bool
	BlockedByKillSwitch bool
	Escalation          *models.Escalation
}

// Reason returns the human-readable reason behind a denial, or "" when the
// action was allowed.
func (d Decision) Reason() string {
	if d.Escalation != nil {
		return d.Escalation.Reason
	}
	return ""
}

// pendingKey indexes pending escalations by (plan, type, action) so raising
// the same escalation twice is structurally idempotent.
type pendingKey struct {
	planID   string
	typ      models.EscalationType
	actionID string
}

// Guardrails holds all guardrail state for one process. Construct one
// instance and share it by reference; there is no package-level singleton.
// All methods are safe for concurrent use.
type Guardrails struct {
	mu  sync.RWMutex
	clk clock.Clock
	ids clock.IDGenerator

	policies    map[string]models.Policy
	startedAt   map[string]time.Time
	usage       map[string]*models.Usage
	paused      map[string]bool
	approved    map[string]map[string]bool
	escalations map[string]*models.Escalation
	pending     map[pendingKey]string

	killSwitch       bool
	killSwitchReason string

	recorder DecisionRecorder
}

// New creates a Guardrails instance with the given clock and id generator.
func New(clk clock.Clock, ids clock.IDGenerator) *Guardrails {
	return &Guardrails{
		clk:         clk,
		ids:         ids,
		policies:    make(map[string]models.Policy),
		startedAt:   make(map[string]time.Time),
		usage:       make(map[string]*models.Usage),
		paused:      make(map[string]bool),
		approved:    make(map[string]map[string]bool),
		escalations: make(map[string]*models.Escalation),
		pending:     make(map[pendingKey]string),
	}
}

// SetRecorder installs a decision recorder. Pass nil to remove it.
func (g *Guardrails) SetRecorder(r DecisionRecorder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recorder = r
}

// RegisterPlan associates a policy with a plan and records the start
// timestamp used for elapsed-runtime checks. Re-registering replaces the
// policy and resets the runtime clock but preserves accumulated usage,
// pause state, and approvals.
func (g *Guardrails) RegisterPlan(planID string, policy models.Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.policies[planID] = policy
	g.startedAt[planID] = g.clk.Now()
	if g.usage[planID] == nil {
		g.usage[planID] = &models.Usage{}
	}
}

// GetUsage returns a copy of the plan's accumulated usage. Unknown plans
// report zero usage.
func (g *Guardrails) GetUsage(planID string) models.Usage {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if u := g.usage[planID]; u != nil {
		return *u
	}
	return models.Usage{}
}

// RecordUsage merges a usage delta into the plan's running total. The
// engine calls this explicitly after each executed task.
func (g *Guardrails) RecordUsage(planID string, delta models.Usage) {
	g.mu.Lock()
	defer g.mu.Unlock()

	u := g.usage[planID]
	if u == nil {
		u = &models.Usage{}
		g.usage[planID] = u
	}
	u.Add(delta)
}

// IsPlanPaused reports whether the plan is paused by a guardrail denial or
// the kill switch.
func (g *Guardrails) IsPlanPaused(planID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused[planID]
}

// IsKillSwitchActive reports whether the global kill switch is engaged.
func (g *Guardrails) IsKillSwitchActive() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.killSwitch
}

// EvaluateAction decides whether the given action may proceed under the
// plan's policy. The decision order is fixed: kill switch, unmanaged plan,
// unapproved irreversible action, hard budget / timebox, soft threshold,
// and finally the plan's pause state. Denials pause the plan and raise (or
// reuse) a pending escalation; evaluation itself never fails.
func (g *Guardrails) EvaluateAction(planID, actionID string, opts EvaluateOptions) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	decision := g.evaluateLocked(planID, actionID, opts)

	if g.recorder != nil {
		escType := models.EscalationType("")
		if decision.Escalation != nil {
			escType = decision.Escalation.Type
		}
		g.recorder.RecordDecision(planID, actionID, decision.Allow, escType, decision.Reason(), g.clk.Now())
	}
	return decision
}

func (g *Guardrails) evaluateLocked(planID, actionID string, opts EvaluateOptions) Decision {
	// 1. Kill switch trumps everything, policy or not.
	if g.killSwitch {
		esc := g.raiseLocked(planID, models.EscalationKillSwitch, "",
			fmt.Sprintf("Kill switch is active: %s", g.killSwitchReason), nil)
		g.paused[planID] = true
		return Decision{BlockedByKillSwitch: true, Escalation: esc.Clone()}
	}

	// 2. Unmanaged plans are fail-open.
	policy, managed := g.policies[planID]
	if !managed {
		return Decision{Allow: true}
	}

	// 3. Irreversible actions need a standing approval for the exact action id.
	if opts.Irreversible && !g.approved[planID][actionID] {
		esc := g.raiseLocked(planID, models.EscalationIrreversible, actionID,
			fmt.Sprintf("Irreversible action %q requires approval", actionID), nil)
		g.paused[planID] = true
		return Decision{Escalation: esc.Clone()}
	}

	current := *g.usage[planID]
	projected := current.Plus(opts.Estimated)

	// 4. Hard caps. Runtime is checked against both the wall clock since
	// registration and the cumulative reported runtime minutes; when the
	// runtime limit triggers, the escalation type is timebox.
	elapsedHours := g.clk.Now().Sub(g.startedAt[planID]).Hours()
	runtimeHours := elapsedHours
	if reported := float64(projected.RuntimeMinutes) / 60; reported > runtimeHours {
		runtimeHours = reported
	}
	if runtimeHours >= policy.Budget.MaxRuntimeHours {
		esc := g.raiseLocked(planID, models.EscalationTimebox, actionID,
			fmt.Sprintf("Projected runtime %.1fh reaches the %.1fh limit", runtimeHours, policy.Budget.MaxRuntimeHours),
			&projected)
		g.paused[planID] = true
		return Decision{Escalation: esc.Clone()}
	}
	if over, detail := exceedsHardBudget(projected, policy.Budget); over {
		esc := g.raiseLocked(planID, models.EscalationBudget, actionID,
			fmt.Sprintf("Projected usage exceeds hard budget: %s", detail), &projected)
		g.paused[planID] = true
		return Decision{Escalation: esc.Clone()}
	}

	// 5. Soft threshold over the three counter budgets.
	if pct := usagePct(projected, policy.Budget); pct >= policy.EscalationThresholdPct {
		esc := g.raiseLocked(planID, models.EscalationBudget, actionID,
			fmt.Sprintf("Projected usage at %.0f%% of budget (threshold %.0f%%)", pct*100, policy.EscalationThresholdPct*100),
			&projected)
		g.paused[planID] = true
		return Decision{Escalation: esc.Clone()}
	}

	// 6. Otherwise allowed, unless the plan is still paused by an earlier
	// denial. The pause clears once all pending escalations are resolved.
	if g.paused[planID] {
		return Decision{Escalation: g.firstPendingLocked(planID)}
	}
	return Decision{Allow: true}
}

func exceedsHardBudget(projected models.Usage, budget models.ResourceBudget) (bool, string) {
	switch {
	case projected.TokensUsed > budget.MaxTokens:
		return true, fmt.Sprintf("tokens %d/%d", projected.TokensUsed, budget.MaxTokens)
	case projected.APICalls > budget.MaxAPICalls:
		return true, fmt.Sprintf("api calls %d/%d", projected.APICalls, budget.MaxAPICalls)
	case projected.ConnectorActions > budget.MaxConnectorActions:
		return true, fmt.Sprintf("connector actions %d/%d", projected.ConnectorActions, budget.MaxConnectorActions)
	}
	return false, ""
}

// usagePct returns the highest fraction of any counter budget the projected
// usage would consume. Runtime is deliberately excluded; it has its own
// timebox check.
func usagePct(projected models.Usage, budget models.ResourceBudget) float64 {
	pct := float64(projected.TokensUsed) / float64(budget.MaxTokens)
	if p := float64(projected.APICalls) / float64(budget.MaxAPICalls); p > pct {
		pct = p
	}
	if p := float64(projected.ConnectorActions) / float64(budget.MaxConnectorActions); p > pct {
		pct = p
	}
	return pct
}

// raiseLocked returns the existing pending escalation for the key or
// creates a new one. Callers must hold g.mu.
func (g *Guardrails) raiseLocked(planID string, typ models.EscalationType, actionID, reason string, usage *models.Usage) *models.Escalation {
	key := pendingKey{planID: planID, typ: typ, actionID: actionID}
	if id, ok := g.pending[key]; ok {
		return g.escalations[id]
	}

	esc := &models.Escalation{
		ID:        g.ids.NewID("esc"),
		PlanID:    planID,
		Type:      typ,
		Status:    models.EscalationPending,
		Reason:    reason,
		ActionID:  actionID,
		CreatedAt: g.clk.Now(),
	}
	if usage != nil {
		u := *usage
		esc.UsageAtRaise = &u
	}
	g.escalations[esc.ID] = esc
	g.pending[key] = esc.ID
	return esc
}

func (g *Guardrails) firstPendingLocked(planID string) *models.Escalation {
	var earliest *models.Escalation
	for _, esc := range g.escalations {
		if esc.PlanID != planID || !esc.IsPending() {
			continue
		}
		if earliest == nil || esc.CreatedAt.Before(earliest.CreatedAt) {
			earliest = esc
		}
	}
	if earliest == nil {
		return nil
	}
	return earliest.Clone()
}

func (g *Guardrails) hasPendingLocked(planID string) bool {
	for _, esc := range g.escalations {
		if esc.PlanID == planID && esc.IsPending() {
			return true
		}
	}
	return false
}

// ResolveEscalation applies a reviewer's decision to a pending escalation.
// Approving an irreversible escalation adds its action id to the plan's
// approved set. When the plan has no pending escalations left and the kill
// switch is inactive, the plan's pause is cleared.
func (g *Guardrails) ResolveEscalation(escalationID string, approve bool, reviewerUserID string) (*models.Escalation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	esc, ok := g.escalations[escalationID]
	if !ok {
		return nil, fmt.Errorf("unknown escalation %q", escalationID)
	}
	if !esc.IsPending() {
		return nil, fmt.Errorf("escalation %q is already %s", escalationID, esc.Status)
	}

	g.resolveLocked(esc, approve, reviewerUserID)

	if approve && esc.Type == models.EscalationIrreversible && esc.ActionID != "" {
		if g.approved[esc.PlanID] == nil {
			g.approved[esc.PlanID] = make(map[string]bool)
		}
		g.approved[esc.PlanID][esc.ActionID] = true
	}

	if !g.killSwitch && !g.hasPendingLocked(esc.PlanID) {
		g.paused[esc.PlanID] = false
	}

	if g.recorder != nil {
		g.recorder.RecordResolution(esc.Clone())
	}
	return esc.Clone(), nil
}

// resolveLocked stamps the resolution onto the escalation and drops it from
// the pending index. Callers must hold g.mu.
func (g *Guardrails) resolveLocked(esc *models.Escalation, approve bool, reviewerUserID string) {
	if approve {
		esc.Status = models.EscalationApproved
	} else {
		esc.Status = models.EscalationRejected
	}
	now := g.clk.Now()
	esc.ResolvedAt = &now
	esc.ResolvedBy = reviewerUserID
	delete(g.pending, pendingKey{planID: esc.PlanID, typ: esc.Type, actionID: esc.ActionID})
}

// ActivateKillSwitch engages the global emergency stop: every registered
// plan is paused and receives a pending kill_switch escalation.
func (g *Guardrails) ActivateKillSwitch(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.killSwitch = true
	g.killSwitchReason = reason
	for planID := range g.policies {
		g.raiseLocked(planID, models.EscalationKillSwitch, "",
			fmt.Sprintf("Kill switch is active: %s", reason), nil)
		g.paused[planID] = true
	}
}

// ClearKillSwitch disengages the kill switch. Pending kill_switch
// escalations are closed out as rejected, and plans with no other pending
// escalations are unpaused.
func (g *Guardrails) ClearKillSwitch() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.killSwitch = false
	g.killSwitchReason = ""
	for _, esc := range g.escalations {
		if esc.Type == models.EscalationKillSwitch && esc.IsPending() {
			g.resolveLocked(esc, false, "kill-switch-clear")
		}
	}
	for planID := range g.paused {
		if !g.hasPendingLocked(planID) {
			g.paused[planID] = false
		}
	}
}

// ListEscalations returns escalations matching the filters, oldest first.
// Empty filters match everything. Callers receive deep copies.
func (g *Guardrails) ListEscalations(planID string, status models.EscalationStatus) []*models.Escalation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*models.Escalation
	for _, esc := range g.escalations {
		if planID != "" && esc.PlanID != planID {
			continue
		}
		if status != "" && esc.Status != status {
			continue
		}
		out = append(out, esc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
