package models

import "time"

// EscalationType identifies what kind of guardrail denial raised an escalation.
type EscalationType string

const (
	EscalationIrreversible EscalationType = "irreversible"
	EscalationBudget       EscalationType = "budget"
	EscalationTimebox      EscalationType = "timebox"
	EscalationKillSwitch   EscalationType = "kill_switch"
)

// EscalationStatus tracks the review lifecycle of an escalation.
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationApproved EscalationStatus = "approved"
	EscalationRejected EscalationStatus = "rejected"
)

// Escalation is a record of a guardrail denial awaiting (or resolved by)
// human review. Its type is fixed at creation. At most one pending
// escalation exists per (plan, type, action) tuple.
type Escalation struct {
	ID           string           `json:"id"`
	PlanID       string           `json:"plan_id"`
	Type         EscalationType   `json:"type"`
	Status       EscalationStatus `json:"status"`
	Reason       string           `json:"reason"`
	ActionID     string           `json:"action_id,omitempty"`
	UsageAtRaise *Usage           `json:"usage_at_raise,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy   string           `json:"resolved_by,omitempty"`
}

// IsPending returns true while the escalation still awaits review.
func (e *Escalation) IsPending() bool {
	return e.Status == EscalationPending
}

// Clone returns a deep copy so callers cannot mutate guardrail state.
func (e *Escalation) Clone() *Escalation {
	c := *e
	if e.UsageAtRaise != nil {
		u := *e.UsageAtRaise
		c.UsageAtRaise = &u
	}
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
