package lint

import (
	"fmt"
	"testing"
	"time"

	"cortex/internal/types"
)

func cleanOutput(component, result string) *types.Output {
	return &types.Output{
		LoopID:                   "loop-1",
		Component:                component,
		Type:                     types.OutputDecision,
		Result:                   result,
		Confidence:               0.8,
		ConstitutionalCompliance: true,
		CreatedAt:                time.Now(),
	}
}

func countCheck(report *types.LintReport, check string) int {
	n := 0
	for _, v := range report.Violations {
		if v.Check == check {
			n++
		}
	}
	return n
}

func TestDirectConflict(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   int
	}{
		{"AllowedForbidden", "the operation is allowed but also forbidden here", 1},
		{"TrueFalse", "the claim is true and the claim is false", 1},
		{"ValidInvalid", "input is valid yet the schema is invalid", 1},
		{"ShouldShouldNot", "we should deploy and we should not deploy", 1},
		{"MustMustNot", "you must retry, you must not retry", 1},
		{"InvalidOnly", "the schema is invalid", 0},
		{"ShouldNotOnly", "we should not deploy this", 0},
		{"Clean", "the deployment plan is sound", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			report := l.Lint(cleanOutput("planner", tt.result), nil)
			if got := countCheck(report, types.CheckDirectConflict); got != tt.want {
				t.Errorf("direct_conflict count = %d, want %d", got, tt.want)
			}
			if tt.want > 0 && report.Severity != types.SeverityError {
				t.Errorf("severity = %s, want ERROR", report.Severity)
			}
		})
	}
}

func TestDirectConflictNeverAutoApplied(t *testing.T) {
	l := New()
	report := l.Lint(cleanOutput("planner", "allowed but forbidden"), nil)
	for _, f := range report.Fixes {
		if f.Check == types.CheckDirectConflict && f.SafeToAutoApply {
			t.Error("direct_conflict patch must never be auto-appliable")
		}
	}
	if report.AutoRemediable {
		t.Error("report with a direct_conflict must not be auto-remediable")
	}
}

func TestPolicyDrift(t *testing.T) {
	o := cleanOutput("planner", "fine")
	o.PolicyTags = []types.PolicyTag{
		{Name: "privacy", Status: types.TagViolation},
		{Name: "quality", Status: types.TagCompliant},
	}
	report := New().Lint(o, nil)
	if got := countCheck(report, types.CheckPolicyDrift); got != 1 {
		t.Errorf("policy_drift count = %d, want 1", got)
	}
	if report.Severity != types.SeverityError {
		t.Errorf("severity = %s, want ERROR", report.Severity)
	}
}

func TestCausalMismatch(t *testing.T) {
	l := New()
	l.DeclareCausalDeps("synthesizer", "retriever", "ranker")

	report := l.Lint(cleanOutput("synthesizer", "fine"),
		&Context{CausalChain: []string{"retriever"}})
	if got := countCheck(report, types.CheckCausalMismatch); got != 1 {
		t.Errorf("causal_mismatch count = %d, want 1 (ranker missing)", got)
	}

	report = l.Lint(cleanOutput("synthesizer", "fine"),
		&Context{CausalChain: []string{"retriever", "ranker"}})
	if got := countCheck(report, types.CheckCausalMismatch); got != 0 {
		t.Errorf("complete chain flagged: count = %d", got)
	}

	// Components without declared deps are never flagged.
	report = l.Lint(cleanOutput("other", "fine"), nil)
	if got := countCheck(report, types.CheckCausalMismatch); got != 0 {
		t.Errorf("undeclared component flagged: count = %d", got)
	}
}

func TestTemporalInconsistency(t *testing.T) {
	future := time.Now().Add(2 * time.Hour)
	past := time.Now().Add(-2 * time.Hour)

	o := cleanOutput("observer", "fine")
	o.Citations = []types.Citation{{Source: "doc-1", Confidence: 0.5, Timestamp: &future}}
	report := New().Lint(o, nil)
	if got := countCheck(report, types.CheckTemporalInconsistency); got != 1 {
		t.Fatalf("temporal count = %d, want 1", got)
	}
	if report.Severity != types.SeverityWarning {
		t.Errorf("severity = %s, want WARNING", report.Severity)
	}
	if !report.AutoRemediable {
		t.Error("temporal-only report should be auto-remediable")
	}

	o = cleanOutput("observer", "fine")
	o.ExpiresAt = &past
	report = New().Lint(o, nil)
	if got := countCheck(report, types.CheckTemporalInconsistency); got != 1 {
		t.Fatalf("expired count = %d, want 1", got)
	}
	if report.Severity != types.SeverityInfo {
		t.Errorf("expired severity = %s, want INFO", report.Severity)
	}
}

func TestMemoryConflict(t *testing.T) {
	l := New()
	// Seed the window with a clean prior output.
	first := l.Lint(cleanOutput("judge", "the request is allow listed, allow it"), nil)
	if !first.Passed {
		t.Fatalf("seed output should pass: %+v", first.Violations)
	}

	report := l.Lint(cleanOutput("judge", "deny the request"), nil)
	if got := countCheck(report, types.CheckMemoryConflict); got != 1 {
		t.Errorf("memory_conflict count = %d, want 1", got)
	}
	for _, f := range report.Fixes {
		if f.Check == types.CheckMemoryConflict && f.EscalateTo != "specialist" {
			t.Errorf("memory_conflict patch escalates to %q, want specialist", f.EscalateTo)
		}
	}

	// Different component: no conflict.
	report = l.Lint(cleanOutput("other", "deny the request"), nil)
	if got := countCheck(report, types.CheckMemoryConflict); got != 0 {
		t.Errorf("cross-component conflict flagged: count = %d", got)
	}
}

func TestMemoryConflictUsesProvidedWindow(t *testing.T) {
	l := New()
	prior := cleanOutput("judge", "accept the proposal")
	report := l.Lint(cleanOutput("judge", "reject the proposal"),
		&Context{RecentMemory: []*types.Output{prior}})
	if got := countCheck(report, types.CheckMemoryConflict); got != 1 {
		t.Errorf("memory_conflict with provided window = %d, want 1", got)
	}
}

func TestKnowledgeConflict(t *testing.T) {
	o := cleanOutput("researcher", "fine")
	o.Citations = []types.Citation{
		{Source: "kb-1", Confidence: 0.95},
		{Source: "kb-2", Confidence: 0.55},
	}
	ctx := &Context{KnownTrust: map[string]float64{"kb-1": 0.5, "kb-2": 0.5}}
	report := New().Lint(o, ctx)
	if got := countCheck(report, types.CheckKnowledgeConflict); got != 1 {
		t.Errorf("knowledge_conflict count = %d, want 1 (only kb-1 exceeds margin)", got)
	}
}

func TestConstitutionalAlignment(t *testing.T) {
	o := cleanOutput("actor", "fine")
	o.RequiresApproval = true
	o.ConstitutionalCompliance = false
	report := New().Lint(o, nil)
	if got := countCheck(report, types.CheckConstitutionalAlignment); got != 1 {
		t.Errorf("constitutional_alignment count = %d, want 1", got)
	}
	if report.Severity != types.SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", report.Severity)
	}
	found := false
	for _, f := range report.Fixes {
		if f.EscalateTo == "governance" {
			found = true
		}
	}
	if !found {
		t.Error("CRITICAL finding should escalate to governance")
	}

	o = cleanOutput("actor", "fine")
	o.Errors = []string{"subprocess failed"}
	report = New().Lint(o, nil)
	if got := countCheck(report, types.CheckConstitutionalAlignment); got != 1 {
		t.Errorf("errors-without-diagnostics count = %d, want 1", got)
	}
	o.Diagnostics = []string{"exit code 3"}
	report = New().Lint(o, nil)
	if got := countCheck(report, types.CheckConstitutionalAlignment); got != 0 {
		t.Errorf("errors with diagnostics flagged: count = %d", got)
	}
}

func TestCleanPassFeedsWindow(t *testing.T) {
	l := New()
	if l.RecentCount() != 0 {
		t.Fatal("fresh linter should have an empty window")
	}
	l.Lint(cleanOutput("a", "all good"), nil)
	if l.RecentCount() != 1 {
		t.Error("clean output should enter the window")
	}
	l.Lint(cleanOutput("a", "allowed and forbidden"), nil)
	if l.RecentCount() != 1 {
		t.Error("failing output must not enter the window")
	}
}

func TestWindowEviction(t *testing.T) {
	l := New()
	for i := 0; i < RecentMemoryCapacity+25; i++ {
		l.Lint(cleanOutput("a", fmt.Sprintf("observation %d recorded", i)), nil)
	}
	if got := l.RecentCount(); got != RecentMemoryCapacity {
		t.Errorf("window size = %d, want %d", got, RecentMemoryCapacity)
	}
}

func TestRingOrder(t *testing.T) {
	r := newRecentRing(3)
	for i := 0; i < 5; i++ {
		r.Push(&types.Output{LoopID: fmt.Sprintf("l%d", i)})
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	want := []string{"l2", "l3", "l4"}
	for i, o := range snap {
		if o.LoopID != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, o.LoopID, want[i])
		}
	}
}
