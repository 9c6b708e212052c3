package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cortex/internal/audit"
	"cortex/internal/config"
	"cortex/internal/events"
	"cortex/internal/gate"
	"cortex/internal/integrator"
	"cortex/internal/lint"
	"cortex/internal/memory"
	"cortex/internal/reputation"
	"cortex/internal/types"
)

// pipeline bundles the wired subsystems for one CLI invocation.
type pipeline struct {
	Store      *memory.Store
	Ledger     *audit.Ledger
	Gate       *gate.Gate
	Integrator *integrator.Integrator
	Bus        *events.Bus
	Reputation *reputation.Table
}

// buildPipeline wires every subsystem from config. The checker is chosen
// at construction: "rules" compiles the constitution, "allow"/"deny" are
// the standalone fixed-score checkers.
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	for _, path := range []string{cfg.Store.DatabasePath, cfg.Store.AuditPath} {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	ledger, err := audit.Open(cfg.Store.AuditPath)
	if err != nil {
		return nil, err
	}

	var checker types.ComplianceChecker
	switch cfg.Gate.Mode {
	case "allow":
		checker = &gate.NullChecker{Compliant: true}
	case "deny":
		checker = &gate.NullChecker{Compliant: false}
	default:
		constitution := gate.DefaultConstitution
		if cfg.Gate.ConstitutionPath != "" {
			data, err := os.ReadFile(cfg.Gate.ConstitutionPath)
			if err != nil {
				ledger.Close()
				return nil, fmt.Errorf("failed to read constitution: %w", err)
			}
			constitution = string(data)
		}
		rc, err := gate.NewRuleChecker(constitution)
		if err != nil {
			ledger.Close()
			return nil, fmt.Errorf("failed to compile constitution: %w", err)
		}
		checker = rc
	}

	rep := reputation.NewTable()
	if cfg.Reputation.Path != "" {
		if loaded, err := reputation.Load(cfg.Reputation.Path); err == nil {
			rep = loaded
			if cfg.Reputation.Watch {
				if err := rep.Watch(cfg.Reputation.Path); err != nil {
					ledger.Close()
					return nil, err
				}
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			ledger.Close()
			return nil, err
		}
	}

	store, err := memory.Open(cfg.Store.DatabasePath,
		memory.WithReputation(rep),
		memory.WithAuditLedger(ledger))
	if err != nil {
		ledger.Close()
		return nil, err
	}

	bus := events.NewBus()
	g := gate.New(checker, ledger)
	integ := integrator.New(g, store, ledger,
		integrator.WithEvents(bus),
		integrator.WithLinter(lint.New()),
		integrator.WithDomain(cfg.Integrator.Domain),
		integrator.WithParallelism(cfg.Integrator.Parallelism))

	return &pipeline{
		Store:      store,
		Ledger:     ledger,
		Gate:       g,
		Integrator: integ,
		Bus:        bus,
		Reputation: rep,
	}, nil
}

func (p *pipeline) Close() {
	p.Bus.Close()
	p.Reputation.Close()
	p.Store.Close()
	p.Ledger.Close()
}
