// Package config loads the pmguard YAML configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/pmguard/internal/alert"
	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/budget"
	"github.com/ppiankov/pmguard/internal/confidence"
	"github.com/ppiankov/pmguard/internal/orchestrator"
	"github.com/ppiankov/pmguard/internal/retry"
)

// DirName is the per-user state directory under $HOME.
const DirName = ".pmguard"

// LogConfig selects the slog level and optional log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config holds everything the CLI and MCP server need.
type Config struct {
	AgentScope       string                `yaml:"agent_scope"`
	StorePath        string                `yaml:"store_path"`
	AuditLog         string                `yaml:"audit_log"`
	AutonomyLevel    autonomy.Level        `yaml:"autonomy_level"`
	HoldQueueMinutes int                   `yaml:"hold_queue_minutes"`
	Budget           budget.Limits         `yaml:"budget"`
	Retry            retry.Policy          `yaml:"retry"`
	Confidence       confidence.Thresholds `yaml:"confidence"`
	Alerts           []alert.AlertConfig   `yaml:"alerts"`
	Log              LogConfig             `yaml:"log"`
}

// DefaultConfig returns the built-in configuration. Paths are rooted at
// ~/.pmguard when the home directory is known.
func DefaultConfig() *Config {
	dir := defaultDir()
	return &Config{
		AgentScope:       "AGENT",
		StorePath:        filepath.Join(dir, "pmguard.db"),
		AuditLog:         filepath.Join(dir, "audit.jsonl"),
		AutonomyLevel:    autonomy.Monitoring,
		HoldQueueMinutes: orchestrator.DefaultHoldQueueMinutes,
		Budget:           budget.DefaultLimits(),
		Retry:            retry.DefaultPolicy(),
		Confidence:       confidence.DefaultThresholds(),
		Log:              LogConfig{Level: "info"},
	}
}

// DefaultPath returns ~/.pmguard/config.yaml, or "" without a home dir.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DirName, "config.yaml")
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// Load reads configuration from a YAML file.
// Empty path falls back to ~/.pmguard/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash also returns "sha256:<hex>" of the raw file bytes, or of
// empty input when defaults were used.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

// Validate rejects values the core cannot operate with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.AgentScope) == "" {
		errs = append(errs, errors.New("agent_scope must not be empty"))
	}
	if !c.AutonomyLevel.Valid() {
		errs = append(errs, fmt.Errorf("autonomy_level: %w", autonomy.ErrUnknownLevel))
	}
	if c.HoldQueueMinutes < 0 {
		errs = append(errs, fmt.Errorf("hold_queue_minutes must be >= 0, got %d", c.HoldQueueMinutes))
	}
	if c.Budget.DailyUSD <= 0 {
		errs = append(errs, fmt.Errorf("budget.daily_limit_usd must be > 0, got %g", c.Budget.DailyUSD))
	}
	if c.Budget.MonthlyUSD <= 0 {
		errs = append(errs, fmt.Errorf("budget.monthly_limit_usd must be > 0, got %g", c.Budget.MonthlyUSD))
	}
	if c.Budget.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("budget.history_limit must be >= 0, got %d", c.Budget.HistoryLimit))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts))
	}
	for name, v := range map[string]float64{
		"confidence.min_source_agreement":     c.Confidence.MinSourceAgreement,
		"confidence.min_precedent_similarity": c.Confidence.MinPrecedentSimilarity,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %g", name, v))
		}
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			errs = append(errs, fmt.Errorf("alerts[%d].url must not be empty", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// OrchestratorConfig derives the per-pass orchestrator settings.
func (c *Config) OrchestratorConfig(dryRun bool) orchestrator.Config {
	return orchestrator.Config{
		AutonomyLevel:    c.AutonomyLevel,
		DryRun:           dryRun,
		HoldQueueMinutes: c.HoldQueueMinutes,
	}
}

// DefaultConfigYAML returns a commented YAML string for init-config.
func DefaultConfigYAML() string {
	return `# pmguard configuration
# Generated by: pmguard init-config

# Partition key for persisted budget records. Agents sharing a scope share
# one budget.
agent_scope: AGENT

# SQLite database for budget windows and the hash-chained decision journal.
# Defaults live under ~/.pmguard/.
# store_path: ~/.pmguard/pmguard.db
# audit_log: ~/.pmguard/audit.jsonl

# monitoring | artefact | tactical
autonomy_level: monitoring

# Cancellation window for hold-queue actions (email_stakeholder,
# jira_status_change).
hold_queue_minutes: 30

# USD ceilings. The degradation ladder is driven by daily spend:
#   <70% normal, 70% conserve, 85% reduced, 95% suspended (no LLM calls)
budget:
  daily_limit_usd: 0.23
  monthly_limit_usd: 8.00
  history_limit: 100

# Optimistic-concurrency retries for budget writes.
retry:
  max_attempts: 5
  base_delay: 50ms
  max_delay: 2s

# Pass marks for the confidence gate.
confidence:
  min_source_agreement: 0.66
  min_precedent_similarity: 0.5

# Webhook alerts. format: generic | slack | pagerduty
# events: prohibited, escalated, rejected, budget_tier_changed, budget_ceiling
alerts: []
#  - url: https://hooks.slack.com/services/XXX
#    format: slack
#    events: [prohibited, escalated, budget_ceiling]

log:
  level: info
  file: ""
`
}
