// Package config loads autopilot configuration from YAML files with
// sensible defaults for everything left unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harrison/autopilot/internal/models"
)

// DefaultConfigPath is where LoadConfig looks when no path is given.
const DefaultConfigPath = ".autopilot/config.yaml"

// PolicyConfig mirrors models.Policy for YAML files. Zero fields inherit
// the default policy.
type PolicyConfig struct {
	// EscalationThresholdPct is the soft budget fraction (0-1) that raises
	// a review request before the hard cap is hit
	EscalationThresholdPct float64 `yaml:"escalation_threshold_pct"`

	// MaxTokens is the hard token ceiling per plan
	MaxTokens int64 `yaml:"max_tokens"`

	// MaxAPICalls is the hard API call ceiling per plan
	MaxAPICalls int64 `yaml:"max_api_calls"`

	// MaxConnectorActions is the hard connector action ceiling per plan
	MaxConnectorActions int64 `yaml:"max_connector_actions"`

	// MaxRuntimeHours is the hard runtime ceiling per plan
	MaxRuntimeHours float64 `yaml:"max_runtime_hours"`
}

// Config represents autopilot configuration options.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// CheckpointPath is where plan snapshots are written ("" disables)
	CheckpointPath string `yaml:"checkpoint_path"`

	// AuditDBPath is the sqlite audit trail location ("" disables)
	AuditDBPath string `yaml:"audit_db_path"`

	// Policy is the default guardrail policy applied to new plans
	Policy PolicyConfig `yaml:"policy"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	policy := models.DefaultPolicy()
	return &Config{
		LogLevel:       "info",
		CheckpointPath: ".autopilot/checkpoint.json",
		AuditDBPath:    ".autopilot/audit.db",
		Policy: PolicyConfig{
			EscalationThresholdPct: policy.EscalationThresholdPct,
			MaxTokens:              policy.Budget.MaxTokens,
			MaxAPICalls:            policy.Budget.MaxAPICalls,
			MaxConnectorActions:    policy.Budget.MaxConnectorActions,
			MaxRuntimeHours:        policy.Budget.MaxRuntimeHours,
		},
	}
}

// LoadConfig loads configuration from the given file path. A missing file
// returns the defaults without error; a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	policy := cfg.Policy.ToPolicy()
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy in config file: %w", err)
	}
	return cfg, nil
}

// ToPolicy converts the YAML form into a models.Policy, filling unset
// fields from the default policy.
func (p PolicyConfig) ToPolicy() models.Policy {
	policy := models.DefaultPolicy()
	if p.EscalationThresholdPct != 0 {
		policy.EscalationThresholdPct = p.EscalationThresholdPct
	}
	if p.MaxTokens != 0 {
		policy.Budget.MaxTokens = p.MaxTokens
	}
	if p.MaxAPICalls != 0 {
		policy.Budget.MaxAPICalls = p.MaxAPICalls
	}
	if p.MaxConnectorActions != 0 {
		policy.Budget.MaxConnectorActions = p.MaxConnectorActions
	}
	if p.MaxRuntimeHours != 0 {
		policy.Budget.MaxRuntimeHours = p.MaxRuntimeHours
	}
	return policy
}
