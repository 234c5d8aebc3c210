package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrison/autopilot/internal/models"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	store := NewStore(path)

	snap := &Snapshot{
		SavedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Plans: []*models.Plan{{
			ID:           "plan-1",
			Goal:         "test goal",
			Status:       models.PlanActive,
			DurationDays: 3,
			Tasks:        []*models.Task{{ID: "task-1", Title: "do it", Status: models.TaskPending}},
		}},
		Escalations: []*models.Escalation{{
			ID:     "esc-1",
			PlanID: "plan-1",
			Type:   models.EscalationBudget,
			Status: models.EscalationPending,
		}},
	}

	if err := store.Save(snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a snapshot")
	}

	if len(loaded.Plans) != 1 || loaded.Plans[0].ID != "plan-1" {
		t.Errorf("unexpected plans: %+v", loaded.Plans)
	}
	if len(loaded.Plans[0].Tasks) != 1 || loaded.Plans[0].Tasks[0].Title != "do it" {
		t.Errorf("unexpected tasks: %+v", loaded.Plans[0].Tasks)
	}
	if len(loaded.Escalations) != 1 || loaded.Escalations[0].Type != models.EscalationBudget {
		t.Errorf("unexpected escalations: %+v", loaded.Escalations)
	}
	if !loaded.SavedAt.Equal(snap.SavedAt) {
		t.Errorf("SavedAt mismatch: %v vs %v", loaded.SavedAt, snap.SavedAt)
	}
}

func TestLoadMissingFileReturnsNil(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %+v", snap)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewStore(path)

	if err := store.Save(&Snapshot{Plans: []*models.Plan{{ID: "old"}}}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := store.Save(&Snapshot{Plans: []*models.Plan{{ID: "new"}}}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Plans) != 1 || loaded.Plans[0].ID != "new" {
		t.Errorf("expected replacement snapshot, got %+v", loaded.Plans)
	}
}

func TestLoadCorruptSnapshotErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewStore(path).Load(); err == nil {
		t.Error("corrupt snapshot should error")
	}
}
