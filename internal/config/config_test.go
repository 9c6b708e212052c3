package config

import (
	"os"
	"path/filepath"
	"testing"

	"cortex/internal/types"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gate.Mode != "rules" {
		t.Fatalf("gate mode = %s", cfg.Gate.Mode)
	}
	if cfg.Consensus.DefaultStrategy != types.StrategyMajority {
		t.Fatalf("strategy = %s", cfg.Consensus.DefaultStrategy)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cortex.yaml")
	body := `
gate:
  mode: allow
integrator:
  domain: research
gc:
  min_trust_threshold: 0.3
  delete_threshold: 0.1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gate.Mode != "allow" || cfg.Integrator.Domain != "research" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.GC.MinTrustThreshold != 0.3 {
		t.Fatalf("gc = %+v", cfg.GC)
	}
	// Untouched sections keep defaults.
	if cfg.Store.DatabasePath != "data/cortex.db" {
		t.Fatalf("store = %+v", cfg.Store)
	}
}

func TestValidateRejectsBadGateMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gate.Mode = "hope"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown gate mode")
	}
}

func TestValidateRejectsInvertedGCThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GC.MinTrustThreshold = 0.1
	cfg.GC.DeleteThreshold = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for delete threshold above archive threshold")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CORTEX_GATE_MODE", "deny")
	t.Setenv("CORTEX_DB_PATH", "/tmp/override.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gate.Mode != "deny" || cfg.Store.DatabasePath != "/tmp/override.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "cortex.yaml")
	cfg := DefaultConfig()
	cfg.Integrator.Domain = "ops"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Integrator.Domain != "ops" {
		t.Fatalf("loaded = %+v", loaded)
	}
}
