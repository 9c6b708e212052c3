package integrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cortex/internal/events"
	"cortex/internal/gate"
	"cortex/internal/lint"
	"cortex/internal/memory"
	"cortex/internal/types"
)

type memLedger struct {
	mu      sync.Mutex
	records []types.AuditRecord
}

func (l *memLedger) Append(_ context.Context, rec types.AuditRecord) error {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return nil
}

func (l *memLedger) bySubsystem(name string) []types.AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.AuditRecord
	for _, r := range l.records {
		if r.Subsystem == name {
			out = append(out, r)
		}
	}
	return out
}

type stubChecker struct {
	result *types.ComplianceResult
}

func (c *stubChecker) Check(context.Context, string, types.OutputType, string, map[string]any, float64) (*types.ComplianceResult, error) {
	return c.result, nil
}

func compliantChecker() *stubChecker {
	return &stubChecker{result: &types.ComplianceResult{
		PrinciplesChecked: []string{"safety"},
		ComplianceScore:   1.0,
	}}
}

type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) Publish(eventType string, _ map[string]any) {
	b.mu.Lock()
	b.events = append(b.events, eventType)
	b.mu.Unlock()
}

func (b *recordingBus) has(eventType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == eventType {
			return true
		}
	}
	return false
}

func newPipeline(t *testing.T, checker types.ComplianceChecker) (*Integrator, *memory.Store, *memLedger, *recordingBus) {
	t.Helper()
	store, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ledger := &memLedger{}
	bus := &recordingBus{}
	i := New(gate.New(checker, ledger), store, ledger,
		WithEvents(bus), WithLinter(lint.New()), WithDomain("testing"))
	return i, store, ledger, bus
}

func goodOutput() *types.Output {
	return &types.Output{
		LoopID:                   "loop-9",
		Component:                "planner",
		Type:                     types.OutputDecision,
		Result:                   "roll out gradually",
		Confidence:               0.9,
		ConstitutionalCompliance: true,
		CreatedAt:                time.Now().UTC(),
	}
}

func TestIntegrateStoresApprovedOutput(t *testing.T) {
	i, store, ledger, bus := newPipeline(t, compliantChecker())
	ctx := context.Background()

	ref, disp := i.Integrate(ctx, goodOutput())
	if disp != DispositionStored {
		t.Fatalf("disposition = %s, want stored", disp)
	}
	if ref == nil || ref.Domain != "testing" {
		t.Fatalf("ref = %+v", ref)
	}

	if _, err := store.Get(ctx, ref.Ref); err != nil {
		t.Fatalf("stored artifact not resolvable: %v", err)
	}
	if !bus.has(types.EventTrustScoreUpdated) || !bus.has(types.EventFeedbackRecorded) {
		t.Fatalf("events = %v", bus.events)
	}

	recs := ledger.bySubsystem("integrator")
	if len(recs) != 1 || recs[0].Result != "stored" {
		t.Fatalf("integrator audit = %+v", recs)
	}
	if recs[0].Payload["correlation_id"] == "" {
		t.Fatal("correlation id missing")
	}
}

func TestIntegrateBlocksNonCompliant(t *testing.T) {
	i, store, ledger, bus := newPipeline(t, compliantChecker())
	ctx := context.Background()

	o := goodOutput()
	o.ConstitutionalCompliance = false
	ref, disp := i.Integrate(ctx, o)
	if disp != DispositionBlocked || ref != nil {
		t.Fatalf("got %v/%s, want nil/blocked", ref, disp)
	}

	if !bus.has(types.EventConstitutionalViolation) {
		t.Fatal("violation event not emitted")
	}
	if hits, _ := store.Read(ctx, nil, 10, false, nil); len(hits) != 0 {
		t.Fatalf("blocked output persisted: %d artifacts", len(hits))
	}
	recs := ledger.bySubsystem("integrator")
	if len(recs) != 1 || recs[0].Result != "blocked" {
		t.Fatalf("integrator audit = %+v", recs)
	}
}

func TestIntegrateEscalatesWithoutStoring(t *testing.T) {
	checker := &stubChecker{result: &types.ComplianceResult{
		PrinciplesChecked:  []string{"safety"},
		ComplianceScore:    1.0,
		NeedsClarification: true,
	}}
	i, store, ledger, bus := newPipeline(t, checker)
	ctx := context.Background()

	ref, disp := i.Integrate(ctx, goodOutput())
	if disp != DispositionEscalated || ref != nil {
		t.Fatalf("got %v/%s, want nil/escalated", ref, disp)
	}
	if !bus.has(types.EventGovernanceEscalation) {
		t.Fatal("escalation event not emitted")
	}
	if hits, _ := store.Read(ctx, nil, 10, false, nil); len(hits) != 0 {
		t.Fatal("escalated output persisted")
	}
	recs := ledger.bySubsystem("integrator")
	if len(recs) != 1 || recs[0].Result != "escalated" {
		t.Fatalf("integrator audit = %+v", recs)
	}
}

func TestIntegrateDegradedOutputIsStored(t *testing.T) {
	checker := &stubChecker{result: &types.ComplianceResult{
		PrinciplesChecked: []string{"safety"},
		ComplianceScore:   0.85, // below GO threshold, above high-risk floor
	}}
	i, _, _, bus := newPipeline(t, checker)

	ref, disp := i.Integrate(context.Background(), goodOutput())
	if disp != DispositionStored || ref == nil {
		t.Fatalf("got %v/%s, want stored", ref, disp)
	}
	if !bus.has(types.EventTrustScoreUpdated) {
		t.Fatal("trust event not emitted")
	}
}

type failingChecker struct{}

func (failingChecker) Check(context.Context, string, types.OutputType, string, map[string]any, float64) (*types.ComplianceResult, error) {
	return nil, &types.ExternalDependencyError{Dependency: "compliance_checker"}
}

func TestIntegrateConvertsDependencyFailureToErrorDisposition(t *testing.T) {
	i, _, ledger, _ := newPipeline(t, failingChecker{})

	ref, disp := i.Integrate(context.Background(), goodOutput())
	if disp != DispositionError || ref != nil {
		t.Fatalf("got %v/%s, want nil/error", ref, disp)
	}
	recs := ledger.bySubsystem("integrator")
	if len(recs) != 1 || recs[0].Result != "error" {
		t.Fatalf("integrator audit = %+v", recs)
	}
	if recs[0].Payload["error"] == "" {
		t.Fatal("error payload missing")
	}
}

func TestScoreOutputPenaltiesAndDegrade(t *testing.T) {
	i := &Integrator{}
	o := goodOutput()
	o.Citations = []types.Citation{{Source: "doc", Confidence: 1.0}}
	q := 1.0
	o.QualityScore = &q

	base := i.scoreOutput(o, &types.Verdict{Decision: types.DecisionGo, ComplianceScore: 1.0})
	// 0.4*0.9 + 0.3*1 + 0.2*1 + 0.1*1 = 0.96
	if diff := base - 0.96; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("base score = %v, want 0.96", base)
	}

	o.Errors = []string{"e1", "e2", "e3", "e4", "e5"}
	o.Warnings = []string{"w1", "w2", "w3", "w4"}
	capped := i.scoreOutput(o, &types.Verdict{Decision: types.DecisionGo, ComplianceScore: 1.0})
	// Penalties cap at 0.3 and 0.15.
	if diff := capped - (0.96 - 0.45); diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("penalized score = %v, want 0.51", capped)
	}

	degraded := i.scoreOutput(o, &types.Verdict{Decision: types.DecisionDegrade, ComplianceScore: 1.0})
	if diff := degraded - 0.51*0.8; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("degraded score = %v, want %v", degraded, 0.51*0.8)
	}
}

func TestIntegrateBatchPreservesOrder(t *testing.T) {
	i, _, _, _ := newPipeline(t, compliantChecker())
	ctx := context.Background()

	outputs := make([]*types.Output, 6)
	for n := range outputs {
		o := goodOutput()
		o.LoopID = "loop-" + string(rune('a'+n))
		outputs[n] = o
	}
	// One blocked in the middle.
	outputs[3].ConstitutionalCompliance = false

	results, err := i.IntegrateBatch(ctx, outputs)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 6 {
		t.Fatalf("got %d results", len(results))
	}
	for n, r := range results {
		if r.Index != n {
			t.Fatalf("result %d has index %d", n, r.Index)
		}
		want := DispositionStored
		if n == 3 {
			want = DispositionBlocked
		}
		if r.Disposition != want {
			t.Fatalf("result %d = %s, want %s", n, r.Disposition, want)
		}
	}
}

func TestIntegrateWithRealEventBus(t *testing.T) {
	store, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ledger := &memLedger{}
	bus := events.NewBus()
	defer bus.Close()

	got := make(chan string, 8)
	bus.Subscribe("", func(ev events.Event) { got <- ev.Type })

	i := New(gate.New(compliantChecker(), ledger), store, ledger, WithEvents(bus))
	if _, disp := i.Integrate(context.Background(), goodOutput()); disp != DispositionStored {
		t.Fatalf("disposition = %s", disp)
	}

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case ty := <-got:
			seen[ty] = true
		case <-deadline:
			t.Fatalf("events seen = %v", seen)
		}
	}
	if !seen[types.EventTrustScoreUpdated] || !seen[types.EventFeedbackRecorded] {
		t.Fatalf("events seen = %v", seen)
	}
}
