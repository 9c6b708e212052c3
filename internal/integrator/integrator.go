// Package integrator orchestrates the pipeline for one output: lint,
// gate, trust scoring, persistence, events, and a final audit record. A
// call never returns an error to the caller; failures become an error
// audit record and an empty result, and the audit trail is the place to
// distinguish "blocked by policy" from "infrastructure failed".
package integrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cortex/internal/gate"
	"cortex/internal/lint"
	"cortex/internal/logging"
	"cortex/internal/memory"
	"cortex/internal/trust"
	"cortex/internal/types"
)

// Disposition says what happened to an integrated output.
type Disposition string

const (
	// DispositionStored: approved and persisted.
	DispositionStored Disposition = "stored"
	// DispositionBlocked: the gate ruled BLOCK. Terminal, no retry.
	DispositionBlocked Disposition = "blocked"
	// DispositionEscalated: the gate ruled ESCALATE; nothing persisted.
	DispositionEscalated Disposition = "escalated"
	// DispositionError: an external dependency failed mid-pipeline.
	DispositionError Disposition = "error"
)

// DefaultDomain is used when no domain option is given.
const DefaultDomain = "general"

// Integrator runs the full pipeline for single outputs.
type Integrator struct {
	gate   *gate.Gate
	linter *lint.Linter
	store  *memory.Store
	bus    types.EventPublisher
	ledger types.AuditLedger

	domain   string
	parallel int
}

// Option configures an Integrator.
type Option func(*Integrator)

// WithLinter wires an advisory linter. Lint findings never block storage;
// they ride along in the audit payload.
func WithLinter(l *lint.Linter) Option {
	return func(i *Integrator) { i.linter = l }
}

// WithEvents wires the event bus.
func WithEvents(bus types.EventPublisher) Option {
	return func(i *Integrator) { i.bus = bus }
}

// WithDomain sets the memory domain integrated artifacts land in.
func WithDomain(domain string) Option {
	return func(i *Integrator) { i.domain = domain }
}

// WithParallelism bounds concurrent IntegrateBatch workers.
func WithParallelism(n int) Option {
	return func(i *Integrator) {
		if n > 0 {
			i.parallel = n
		}
	}
}

// New builds an Integrator. The gate, store, and ledger are mandatory.
func New(g *gate.Gate, store *memory.Store, ledger types.AuditLedger, opts ...Option) *Integrator {
	i := &Integrator{
		gate:     g,
		store:    store,
		ledger:   ledger,
		domain:   DefaultDomain,
		parallel: 4,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Integrate runs one output through the pipeline. The returned ref is nil
// unless the output was stored; the disposition says why.
func (i *Integrator) Integrate(ctx context.Context, o *types.Output) (*types.MemoryRef, Disposition) {
	correlationID := uuid.NewString()
	ref, disp, err := i.run(ctx, o, correlationID)
	if err != nil {
		logging.Integrate("integration error loop=%s component=%s: %v", o.LoopID, o.Component, err)
		i.auditOutcome(ctx, o, correlationID, "error", map[string]any{"error": err.Error()})
		return nil, DispositionError
	}
	return ref, disp
}

func (i *Integrator) run(ctx context.Context, o *types.Output, correlationID string) (*types.MemoryRef, Disposition, error) {
	var lintSummary string
	if i.linter != nil {
		report := i.linter.Lint(o, nil)
		lintSummary = report.Summary
		if !report.Passed {
			logging.Integrate("lint flagged loop=%s component=%s severity=%s", o.LoopID, o.Component, report.Severity)
		}
	}

	verdict, err := i.gate.Validate(ctx, o)
	if err != nil {
		return nil, DispositionError, fmt.Errorf("gate validation: %w", err)
	}

	if verdict.Decision == types.DecisionBlock {
		i.publish(types.EventConstitutionalViolation, map[string]any{
			"loop_id":   o.LoopID,
			"component": o.Component,
			"severity":  verdict.Severity,
			"tags":      verdict.Tags,
		})
		i.auditOutcome(ctx, o, correlationID, "blocked", map[string]any{
			"decision":     string(verdict.Decision),
			"severity":     verdict.Severity,
			"lint_summary": lintSummary,
		})
		return nil, DispositionBlocked, nil
	}

	if verdict.NeedsEscalation() {
		// Advisory: escalation is reported but does not stop the pipeline.
		i.publish(types.EventGovernanceEscalation, map[string]any{
			"loop_id":   o.LoopID,
			"component": o.Component,
			"tags":      verdict.Tags,
		})
	}

	trustScore := i.scoreOutput(o, verdict)
	i.publish(types.EventTrustScoreUpdated, map[string]any{
		"loop_id":   o.LoopID,
		"component": o.Component,
		"trust":     trustScore,
		"decision":  string(verdict.Decision),
	})

	if !verdict.IsApproved() || !verdict.SafeToStore() {
		i.auditOutcome(ctx, o, correlationID, "escalated", map[string]any{
			"decision":     string(verdict.Decision),
			"trust":        trustScore,
			"lint_summary": lintSummary,
		})
		return nil, DispositionEscalated, nil
	}

	ref, err := i.store.Store(ctx, o, i.domain, string(o.Type), true)
	if err != nil {
		return nil, DispositionError, fmt.Errorf("storing artifact: %w", err)
	}

	i.publish(types.EventFeedbackRecorded, map[string]any{
		"ref":       ref.Ref,
		"loop_id":   o.LoopID,
		"component": o.Component,
		"trust":     trustScore,
	})
	i.auditOutcome(ctx, o, correlationID, "stored", map[string]any{
		"ref":          ref.Ref,
		"decision":     string(verdict.Decision),
		"trust":        trustScore,
		"lint_summary": lintSummary,
	})
	logging.Integrate("stored %s loop=%s component=%s decision=%s trust=%.3f",
		ref.Ref, o.LoopID, o.Component, verdict.Decision, trustScore)
	return ref, DispositionStored, nil
}

// scoreOutput derives the integration trust score from the output and its
// verdict. Distinct from the store's write-time signals: this one feeds
// the TrustScoreUpdated event stream.
func (i *Integrator) scoreOutput(o *types.Output, v *types.Verdict) float64 {
	quality := 0.0
	if o.QualityScore != nil {
		quality = *o.QualityScore
	}
	score := 0.4*o.Confidence +
		0.3*v.ComplianceScore +
		0.2*o.MeanCitationConfidence() +
		0.1*quality

	errPenalty := float64(len(o.Errors)) * 0.1
	if errPenalty > 0.3 {
		errPenalty = 0.3
	}
	warnPenalty := float64(len(o.Warnings)) * 0.05
	if warnPenalty > 0.15 {
		warnPenalty = 0.15
	}
	score -= errPenalty + warnPenalty

	if v.Decision == types.DecisionDegrade {
		score *= 0.8
	}
	return trust.Clamp(score)
}

func (i *Integrator) publish(eventType string, payload map[string]any) {
	if i.bus != nil {
		i.bus.Publish(eventType, payload)
	}
}

// auditOutcome writes the single per-integration audit record. An audit
// failure here is logged and dropped: the pipeline outcome already
// happened and must not be reversed by a trailing bookkeeping error.
func (i *Integrator) auditOutcome(ctx context.Context, o *types.Output, correlationID, result string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["correlation_id"] = correlationID
	err := i.ledger.Append(ctx, types.AuditRecord{
		Actor:     o.Component,
		Action:    "integrate",
		Resource:  o.LoopID,
		Subsystem: "integrator",
		Payload:   payload,
		Result:    result,
	})
	if err != nil {
		logging.Integrate("audit append failed (outcome %s): %v", result, err)
	}
}

// BatchResult pairs one output's position with its outcome.
type BatchResult struct {
	Index       int
	Ref         *types.MemoryRef
	Disposition Disposition
}

// IntegrateBatch runs outputs through the pipeline concurrently, bounded
// by the configured parallelism. Results arrive in input order. Individual
// failures are dispositions, not errors, so the only error path is context
// cancellation.
func (i *Integrator) IntegrateBatch(ctx context.Context, outputs []*types.Output) ([]BatchResult, error) {
	results := make([]BatchResult, len(outputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallel)
	for idx, o := range outputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ref, disp := i.Integrate(ctx, o)
			results[idx] = BatchResult{Index: idx, Ref: ref, Disposition: disp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
