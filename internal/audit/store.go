// Package audit keeps an append-only sqlite trail of guardrail decisions
// and escalation resolutions. The trail is optional: the guardrails work
// without a recorder attached, and recording failures are surfaced on the
// store, never back into the decision path.
package audit

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/autopilot/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// DecisionRecord is one evaluated action as stored in the trail.
type DecisionRecord struct {
	ID             int64
	PlanID         string
	ActionID       string
	Allowed        bool
	EscalationType string
	Reason         string
	DecidedAt      time.Time
}

// ResolutionRecord is one resolved escalation as stored in the trail.
type ResolutionRecord struct {
	ID           int64
	EscalationID string
	PlanID       string
	Type         string
	Status       string
	ResolvedBy   string
	ResolvedAt   time.Time
}

// Store manages the sqlite audit database. It implements the guardrails
// DecisionRecorder interface.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the audit database at dbPath. Use ":memory:"
// for an ephemeral store in tests.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	// busy_timeout first so later statements wait on locks instead of
	// failing during concurrent initialization.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordDecision appends one guardrail decision to the trail. Errors are
// swallowed deliberately: auditing must never block an evaluation.
func (s *Store) RecordDecision(planID, actionID string, allowed bool, escalationType models.EscalationType, reason string, at time.Time) {
	_, err := s.db.Exec(
		`INSERT INTO decisions (plan_id, action_id, allowed, escalation_type, reason, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		planID, actionID, boolToInt(allowed), string(escalationType), reason, at,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: audit decision write failed: %v\n", err)
	}
}

// RecordResolution appends one escalation resolution to the trail.
func (s *Store) RecordResolution(esc *models.Escalation) {
	resolvedAt := time.Time{}
	if esc.ResolvedAt != nil {
		resolvedAt = *esc.ResolvedAt
	}
	_, err := s.db.Exec(
		`INSERT INTO resolutions (escalation_id, plan_id, escalation_type, status, resolved_by, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		esc.ID, esc.PlanID, string(esc.Type), string(esc.Status), esc.ResolvedBy, resolvedAt,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: audit resolution write failed: %v\n", err)
	}
}

// ListDecisions returns the plan's decisions, oldest first. An empty
// planID lists everything.
func (s *Store) ListDecisions(planID string) ([]DecisionRecord, error) {
	query := `SELECT id, plan_id, action_id, allowed, escalation_type, reason, decided_at
	          FROM decisions`
	args := []interface{}{}
	if planID != "" {
		query += " WHERE plan_id = ?"
		args = append(args, planID)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var allowed int
		if err := rows.Scan(&rec.ID, &rec.PlanID, &rec.ActionID, &allowed, &rec.EscalationType, &rec.Reason, &rec.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Allowed = allowed != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListResolutions returns the plan's escalation resolutions, oldest first.
// An empty planID lists everything.
func (s *Store) ListResolutions(planID string) ([]ResolutionRecord, error) {
	query := `SELECT id, escalation_id, plan_id, escalation_type, status, resolved_by, resolved_at
	          FROM resolutions`
	args := []interface{}{}
	if planID != "" {
		query += " WHERE plan_id = ?"
		args = append(args, planID)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	var out []ResolutionRecord
	for rows.Next() {
		var rec ResolutionRecord
		if err := rows.Scan(&rec.ID, &rec.EscalationID, &rec.PlanID, &rec.Type, &rec.Status, &rec.ResolvedBy, &rec.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
