// Package config loads pipeline configuration from YAML with defaults and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"cortex/internal/types"
)

// Config holds all cortex configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Store      StoreConfig      `yaml:"store"`
	Gate       GateConfig       `yaml:"gate"`
	Consensus  ConsensusConfig  `yaml:"consensus"`
	Integrator IntegratorConfig `yaml:"integrator"`
	GC         types.GCPolicy   `yaml:"gc"`
	Reputation ReputationConfig `yaml:"reputation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig configures the artifact store and audit ledger.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	AuditPath    string `yaml:"audit_path"`
}

// GateConfig selects the compliance checker wired at construction.
// Mode "rules" evaluates the constitution; "allow" and "deny" are the
// standalone approximations with fixed compliance scores.
type GateConfig struct {
	Mode             string `yaml:"mode"` // rules, allow, deny
	ConstitutionPath string `yaml:"constitution_path"`
}

// ConsensusConfig configures deliberation defaults.
type ConsensusConfig struct {
	DefaultStrategy types.Strategy `yaml:"default_strategy"`
}

// IntegratorConfig configures the integration pipeline.
type IntegratorConfig struct {
	Domain      string `yaml:"domain"`
	Parallelism int    `yaml:"parallelism"`
}

// ReputationConfig points at the component reputation table.
type ReputationConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cortex",
		Version: "0.3.0",

		Store: StoreConfig{
			DatabasePath: "data/cortex.db",
			AuditPath:    "data/audit.db",
		},
		Gate: GateConfig{
			Mode: "rules",
		},
		Consensus: ConsensusConfig{
			DefaultStrategy: types.StrategyMajority,
		},
		Integrator: IntegratorConfig{
			Domain:      "general",
			Parallelism: 4,
		},
		GC: types.GCPolicy{
			MinTrustThreshold: 0.2,
			DeleteThreshold:   0.05,
		},
		Reputation: ReputationConfig{
			Path: "data/reputation.yaml",
		},
		Logging: LoggingConfig{
			Dir:   "data",
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist. Values merge over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the pipeline cannot start with.
func (c *Config) Validate() error {
	switch c.Gate.Mode {
	case "rules", "allow", "deny":
	default:
		return fmt.Errorf("gate.mode %q: must be rules, allow, or deny", c.Gate.Mode)
	}
	if !c.Consensus.DefaultStrategy.Valid() {
		return fmt.Errorf("consensus.default_strategy %q is not a known strategy", c.Consensus.DefaultStrategy)
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required")
	}
	if c.Store.AuditPath == "" {
		return fmt.Errorf("store.audit_path is required")
	}
	if c.Integrator.Parallelism < 0 {
		return fmt.Errorf("integrator.parallelism must be >= 0")
	}
	if c.GC.DeleteThreshold > c.GC.MinTrustThreshold {
		return fmt.Errorf("gc.delete_threshold %v exceeds gc.min_trust_threshold %v",
			c.GC.DeleteThreshold, c.GC.MinTrustThreshold)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CORTEX_DB_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("CORTEX_AUDIT_PATH"); v != "" {
		c.Store.AuditPath = v
	}
	if v := os.Getenv("CORTEX_GATE_MODE"); v != "" {
		c.Gate.Mode = v
	}
	if v := os.Getenv("CORTEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CORTEX_DOMAIN"); v != "" {
		c.Integrator.Domain = v
	}
}
