package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/autopilot.yaml")
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Policy.MaxTokens == 0 {
		t.Error("expected default policy budget")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autopilot.yaml")
	content := `
log_level: debug
policy:
  escalation_threshold_pct: 0.5
  max_tokens: 2000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug, got %s", cfg.LogLevel)
	}

	policy := cfg.Policy.ToPolicy()
	if policy.EscalationThresholdPct != 0.5 {
		t.Errorf("expected threshold 0.5, got %v", policy.EscalationThresholdPct)
	}
	if policy.Budget.MaxTokens != 2000 {
		t.Errorf("expected 2000 tokens, got %d", policy.Budget.MaxTokens)
	}
	// Unset fields keep their defaults.
	if policy.Budget.MaxAPICalls == 0 {
		t.Error("unset budget fields should inherit defaults")
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autopilot.yaml")
	if err := os.WriteFile(path, []byte("log_level: [unclosed"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed yaml should error")
	}
}

func TestLoadConfigInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autopilot.yaml")
	content := `
policy:
  escalation_threshold_pct: 1.5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("out-of-range threshold should error")
	}
}
