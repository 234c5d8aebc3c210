package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/harrison/autopilot/internal/clock"
	"github.com/harrison/autopilot/internal/guardrails"
	"github.com/harrison/autopilot/internal/models"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListDecisions(t *testing.T) {
	store := newMemoryStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	store.RecordDecision("plan-1", "act-1", true, "", "", now)
	store.RecordDecision("plan-1", "act-2", false, models.EscalationBudget, "over budget", now.Add(time.Minute))
	store.RecordDecision("plan-2", "act-3", true, "", "", now.Add(2*time.Minute))

	all, err := store.ListDecisions("")
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(all))
	}

	plan1, err := store.ListDecisions("plan-1")
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(plan1) != 2 {
		t.Fatalf("expected 2 decisions for plan-1, got %d", len(plan1))
	}
	if plan1[0].ActionID != "act-1" || !plan1[0].Allowed {
		t.Errorf("unexpected first record: %+v", plan1[0])
	}
	if plan1[1].EscalationType != "budget" || plan1[1].Reason != "over budget" {
		t.Errorf("unexpected second record: %+v", plan1[1])
	}
}

func TestRecordAndListResolutions(t *testing.T) {
	store := newMemoryStore(t)
	resolved := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	store.RecordResolution(&models.Escalation{
		ID:         "esc-1",
		PlanID:     "plan-1",
		Type:       models.EscalationIrreversible,
		Status:     models.EscalationApproved,
		ResolvedBy: "reviewer-1",
		ResolvedAt: &resolved,
	})

	list, err := store.ListResolutions("plan-1")
	if err != nil {
		t.Fatalf("ListResolutions failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 resolution, got %d", len(list))
	}
	if list[0].Status != "approved" || list[0].ResolvedBy != "reviewer-1" {
		t.Errorf("unexpected record: %+v", list[0])
	}
}

func TestStoreAsGuardrailRecorder(t *testing.T) {
	store := newMemoryStore(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := guardrails.New(clk, clock.NewSequenceGenerator())
	g.SetRecorder(store)

	policy := models.DefaultPolicy()
	g.RegisterPlan("plan-1", policy)

	g.EvaluateAction("plan-1", "safe", guardrails.EvaluateOptions{})
	denied := g.EvaluateAction("plan-1", "risky", guardrails.EvaluateOptions{Irreversible: true})
	if denied.Allow {
		t.Fatal("expected denial")
	}
	if _, err := g.ResolveEscalation(denied.Escalation.ID, true, "reviewer-1"); err != nil {
		t.Fatalf("ResolveEscalation failed: %v", err)
	}

	decisions, err := store.ListDecisions("plan-1")
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].Allowed != true || decisions[1].Allowed != false {
		t.Errorf("unexpected decision records: %+v", decisions)
	}
	if decisions[1].EscalationType != "irreversible" {
		t.Errorf("expected irreversible type, got %q", decisions[1].EscalationType)
	}

	resolutions, err := store.ListResolutions("plan-1")
	if err != nil {
		t.Fatalf("ListResolutions failed: %v", err)
	}
	if len(resolutions) != 1 || resolutions[0].Status != "approved" {
		t.Errorf("unexpected resolutions: %+v", resolutions)
	}
}

func TestStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	store.RecordDecision("plan-1", "act-1", true, "", "", time.Now())
	records, err := store.ListDecisions("")
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}
