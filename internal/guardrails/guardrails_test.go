package guardrails

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/autopilot/internal/clock"
	"github.com/harrison/autopilot/internal/models"
)

func newTestGuardrails(t *testing.T) (*Guardrails, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return New(clk, clock.NewSequenceGenerator()), clk
}

func testPolicy() models.Policy {
	return models.Policy{
		EscalationThresholdPct: 0.8,
		Budget: models.ResourceBudget{
			MaxTokens:           1000,
			MaxAPICalls:         10,
			MaxConnectorActions: 5,
			MaxRuntimeHours:     1,
		},
	}
}

func TestEvaluateActionUnmanagedPlanIsFailOpen(t *testing.T) {
	g, _ := newTestGuardrails(t)

	decision := g.EvaluateAction("unknown-plan", "act-1", EvaluateOptions{
		Estimated: models.Usage{TokensUsed: 1_000_000},
	})

	assert.True(t, decision.Allow)
	assert.Nil(t, decision.Escalation)
}

func TestEvaluateActionAllowsWithinBudget(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())

	decision := g.EvaluateAction("plan-1", "act-1", EvaluateOptions{
		Estimated: models.Usage{TokensUsed: 100, APICalls: 1},
	})

	assert.True(t, decision.Allow)
	assert.False(t, g.IsPlanPaused("plan-1"))
}

func TestIrreversibleDeniedUntilApproved(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())

	opts := EvaluateOptions{Irreversible: true}

	first := g.EvaluateAction("plan-1", "delete-prod", opts)
	require.False(t, first.Allow)
	require.NotNil(t, first.Escalation)
	assert.Equal(t, models.EscalationIrreversible, first.Escalation.Type)
	assert.True(t, g.IsPlanPaused("plan-1"))

	// Raising again while pending reuses the same escalation.
	second := g.EvaluateAction("plan-1", "delete-prod", opts)
	require.NotNil(t, second.Escalation)
	assert.Equal(t, first.Escalation.ID, second.Escalation.ID)

	resolved, err := g.ResolveEscalation(first.Escalation.ID, true, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.EscalationApproved, resolved.Status)
	assert.Equal(t, "reviewer-1", resolved.ResolvedBy)
	assert.False(t, g.IsPlanPaused("plan-1"))

	// The exact action id is now allowed indefinitely.
	third := g.EvaluateAction("plan-1", "delete-prod", opts)
	assert.True(t, third.Allow)

	// A different action id needs its own approval.
	fourth := g.EvaluateAction("plan-1", "drop-table", opts)
	assert.False(t, fourth.Allow)
	require.NotNil(t, fourth.Escalation)
	assert.NotEqual(t, first.Escalation.ID, fourth.Escalation.ID)
}

func TestHardBudgetDenial(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())
	g.RecordUsage("plan-1", models.Usage{APICalls: 8})

	decision := g.EvaluateAction("plan-1", "act-1", EvaluateOptions{
		Estimated: models.Usage{APICalls: 5},
	})

	require.False(t, decision.Allow)
	require.NotNil(t, decision.Escalation)
	assert.Equal(t, models.EscalationBudget, decision.Escalation.Type)
	assert.Contains(t, decision.Escalation.Reason, "api calls 13/10")
	assert.True(t, g.IsPlanPaused("plan-1"))
}

func TestSoftThresholdDenial(t *testing.T) {
	// 50 tokens used, 900 estimated: 950/1000 = 95% >= 80% threshold even
	// though the hard cap is not reached.
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())
	g.RecordUsage("plan-1", models.Usage{TokensUsed: 50})

	decision := g.EvaluateAction("plan-1", "act-1", EvaluateOptions{
		Estimated: models.Usage{TokensUsed: 900},
	})

	require.False(t, decision.Allow)
	require.NotNil(t, decision.Escalation)
	assert.Equal(t, models.EscalationBudget, decision.Escalation.Type)
	assert.Contains(t, decision.Escalation.Reason, "95%")
}

func TestTimeboxDenialFromWallClock(t *testing.T) {
	g, clk := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())

	clk.Advance(2 * time.Hour)

	decision := g.EvaluateAction("plan-1", "act-1", EvaluateOptions{})
	require.False(t, decision.Allow)
	require.NotNil(t, decision.Escalation)
	assert.Equal(t, models.EscalationTimebox, decision.Escalation.Type)
}

func TestTimeboxTakesPrecedenceOverBudget(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())

	// Both the token cap and the runtime limit are exceeded; the runtime
	// trigger wins.
	decision := g.EvaluateAction("plan-1", "act-1", EvaluateOptions{
		Estimated: models.Usage{TokensUsed: 5000, RuntimeMinutes: 120},
	})

	require.False(t, decision.Allow)
	require.NotNil(t, decision.Escalation)
	assert.Equal(t, models.EscalationTimebox, decision.Escalation.Type)
}

func TestTimeboxFromReportedRuntimeMinutes(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())
	g.RecordUsage("plan-1", models.Usage{RuntimeMinutes: 50})

	decision := g.EvaluateAction("plan-1", "act-1", EvaluateOptions{
		Estimated: models.Usage{RuntimeMinutes: 15},
	})

	require.False(t, decision.Allow)
	require.NotNil(t, decision.Escalation)
	assert.Equal(t, models.EscalationTimebox, decision.Escalation.Type)
}

func TestReRegisterResetsRuntimeClockButKeepsUsage(t *testing.T) {
	g, clk := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())
	g.RecordUsage("plan-1", models.Usage{TokensUsed: 100})

	clk.Advance(2 * time.Hour)
	g.RegisterPlan("plan-1", testPolicy())

	usage := g.GetUsage("plan-1")
	assert.Equal(t, int64(100), usage.TokensUsed)

	decision := g.EvaluateAction("plan-1", "act-1", EvaluateOptions{})
	assert.True(t, decision.Allow, "runtime clock should reset on re-registration")
}

func TestPausedPlanDeniesUnrelatedActions(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())

	blocked := g.EvaluateAction("plan-1", "risky", EvaluateOptions{Irreversible: true})
	require.False(t, blocked.Allow)

	// A harmless action is still denied while the escalation is pending.
	decision := g.EvaluateAction("plan-1", "harmless", EvaluateOptions{})
	assert.False(t, decision.Allow)
	require.NotNil(t, decision.Escalation)
	assert.Equal(t, blocked.Escalation.ID, decision.Escalation.ID)

	_, err := g.ResolveEscalation(blocked.Escalation.ID, false, "reviewer-1")
	require.NoError(t, err)

	after := g.EvaluateAction("plan-1", "harmless", EvaluateOptions{})
	assert.True(t, after.Allow)
}

func TestKillSwitchPausesAllRegisteredPlans(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())
	g.RegisterPlan("plan-2", testPolicy())

	g.ActivateKillSwitch("incident response")

	assert.True(t, g.IsKillSwitchActive())
	assert.True(t, g.IsPlanPaused("plan-1"))
	assert.True(t, g.IsPlanPaused("plan-2"))

	for _, planID := range []string{"plan-1", "plan-2"} {
		decision := g.EvaluateAction(planID, "act", EvaluateOptions{})
		assert.False(t, decision.Allow)
		assert.True(t, decision.BlockedByKillSwitch)
		require.NotNil(t, decision.Escalation)
		assert.Equal(t, models.EscalationKillSwitch, decision.Escalation.Type)
	}
}

func TestClearKillSwitchUnpausesCleanPlans(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())
	g.RegisterPlan("plan-2", testPolicy())

	// plan-2 has its own pending escalation before the kill switch.
	blocked := g.EvaluateAction("plan-2", "risky", EvaluateOptions{Irreversible: true})
	require.False(t, blocked.Allow)

	g.ActivateKillSwitch("incident response")
	g.ClearKillSwitch()

	assert.False(t, g.IsKillSwitchActive())
	assert.False(t, g.IsPlanPaused("plan-1"))
	assert.True(t, g.IsPlanPaused("plan-2"), "plan with other pending escalations stays paused")

	// Kill-switch escalations were closed out.
	pending := g.ListEscalations("plan-1", models.EscalationPending)
	assert.Empty(t, pending)
}

func TestKillSwitchBlocksUnmanagedPlans(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.ActivateKillSwitch("stop everything")

	decision := g.EvaluateAction("never-registered", "act", EvaluateOptions{})
	assert.False(t, decision.Allow)
	assert.True(t, decision.BlockedByKillSwitch)
}

func TestResolveEscalationErrors(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())

	_, err := g.ResolveEscalation("nope", true, "reviewer-1")
	assert.Error(t, err)

	decision := g.EvaluateAction("plan-1", "risky", EvaluateOptions{Irreversible: true})
	require.NotNil(t, decision.Escalation)

	_, err = g.ResolveEscalation(decision.Escalation.ID, false, "reviewer-1")
	require.NoError(t, err)

	_, err = g.ResolveEscalation(decision.Escalation.ID, true, "reviewer-1")
	assert.Error(t, err, "resolving twice is a caller bug")
}

func TestListEscalationsFilters(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())
	g.RegisterPlan("plan-2", testPolicy())

	g.EvaluateAction("plan-1", "a", EvaluateOptions{Irreversible: true})
	g.EvaluateAction("plan-2", "b", EvaluateOptions{Irreversible: true})

	all := g.ListEscalations("", "")
	assert.Len(t, all, 2)

	plan1 := g.ListEscalations("plan-1", "")
	require.Len(t, plan1, 1)
	assert.Equal(t, "plan-1", plan1[0].PlanID)

	pending := g.ListEscalations("", models.EscalationPending)
	assert.Len(t, pending, 2)

	approved := g.ListEscalations("", models.EscalationApproved)
	assert.Empty(t, approved)
}

func TestListEscalationsReturnsCopies(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())
	g.EvaluateAction("plan-1", "a", EvaluateOptions{Irreversible: true})

	list := g.ListEscalations("plan-1", "")
	require.Len(t, list, 1)
	list[0].Status = models.EscalationApproved

	again := g.ListEscalations("plan-1", "")
	assert.Equal(t, models.EscalationPending, again[0].Status)
}

func TestUsageIsMonotonic(t *testing.T) {
	g, _ := newTestGuardrails(t)
	g.RegisterPlan("plan-1", testPolicy())

	deltas := []models.Usage{
		{TokensUsed: 10},
		{APICalls: 3, RuntimeMinutes: 5},
		{TokensUsed: -100},
		{ConnectorActions: 1},
	}

	prev := g.GetUsage("plan-1")
	for _, d := range deltas {
		g.RecordUsage("plan-1", d)
		cur := g.GetUsage("plan-1")
		assert.GreaterOrEqual(t, cur.TokensUsed, prev.TokensUsed)
		assert.GreaterOrEqual(t, cur.APICalls, prev.APICalls)
		assert.GreaterOrEqual(t, cur.ConnectorActions, prev.ConnectorActions)
		assert.GreaterOrEqual(t, cur.RuntimeMinutes, prev.RuntimeMinutes)
		prev = cur
	}
}
