package models

import (
	"errors"
	"fmt"
)

// ResourceBudget defines the hard ceilings a plan may not exceed.
type ResourceBudget struct {
	MaxTokens           int64   `json:"max_tokens"`
	MaxAPICalls         int64   `json:"max_api_calls"`
	MaxConnectorActions int64   `json:"max_connector_actions"`
	MaxRuntimeHours     float64 `json:"max_runtime_hours"`
}

// Policy is the per-plan guardrail configuration: a soft escalation
// threshold (fraction of budget) and the hard resource budget.
// It is immutable once registered for a plan; re-registration replaces it.
type Policy struct {
	EscalationThresholdPct float64        `json:"escalation_threshold_pct"`
	Budget                 ResourceBudget `json:"budget"`
}

// DefaultPolicy returns a generous policy used when a plan is created
// without an explicit one.
func DefaultPolicy() Policy {
	return Policy{
		EscalationThresholdPct: 0.8,
		Budget: ResourceBudget{
			MaxTokens:           1_000_000,
			MaxAPICalls:         10_000,
			MaxConnectorActions: 1_000,
			MaxRuntimeHours:     24,
		},
	}
}

// Validate checks that the policy is internally consistent.
func (p *Policy) Validate() error {
	if p.EscalationThresholdPct < 0 || p.EscalationThresholdPct > 1 {
		return fmt.Errorf("escalation threshold must be within [0,1], got %v", p.EscalationThresholdPct)
	}
	if p.Budget.MaxTokens <= 0 {
		return errors.New("budget max_tokens must be positive")
	}
	if p.Budget.MaxAPICalls <= 0 {
		return errors.New("budget max_api_calls must be positive")
	}
	if p.Budget.MaxConnectorActions <= 0 {
		return errors.New("budget max_connector_actions must be positive")
	}
	if p.Budget.MaxRuntimeHours <= 0 {
		return errors.New("budget max_runtime_hours must be positive")
	}
	return nil
}
