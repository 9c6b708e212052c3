package consensus

import (
	"math"
	"testing"
	"time"

	"cortex/internal/types"
)

func prop(specialist, result string, confidence float64, compliant bool) types.Proposal {
	return types.Proposal{
		Specialist: specialist,
		Output: &types.Output{
			LoopID:                   "loop-1",
			Component:                specialist,
			Type:                     types.OutputDecision,
			Result:                   result,
			Confidence:               confidence,
			ConstitutionalCompliance: compliant,
		},
	}
}

func TestDeliberateEmptyProposals(t *testing.T) {
	e := New(NewTrustTable())
	_, err := e.Deliberate(&types.DeliberationTask{ID: "t1", Strategy: types.StrategyMajority})
	if err != types.ErrEmptyProposalSet {
		t.Fatalf("err = %v, want ErrEmptyProposalSet", err)
	}
}

func TestMajorityPrefersTrustedSpecialist(t *testing.T) {
	table := NewTrustTable()
	// Drive alpha's trust up toward 0.9 and leave beta at 0.5.
	for i := 0; i < 60; i++ {
		table.Update("alpha", true)
	}
	if table.Trust("alpha") < 0.85 {
		t.Fatalf("trust(alpha) = %v, want >= 0.85 after repeated successes", table.Trust("alpha"))
	}

	e := New(table)
	task := &types.DeliberationTask{
		ID:       "t2",
		Strategy: types.StrategyMajority,
		Proposals: []types.Proposal{
			prop("alpha", "ship it", 0.9, true),
			prop("beta", "hold off", 0.9, true),
		},
	}
	d, err := e.Deliberate(task)
	if err != nil {
		t.Fatal(err)
	}
	if d.ChosenSpecialist != "alpha" {
		t.Fatalf("chosen = %s, want alpha", d.ChosenSpecialist)
	}
	if len(d.Dissent) != 1 || d.Dissent[0] != "beta" {
		t.Fatalf("dissent = %v, want [beta]", d.Dissent)
	}
	if d.StrategyUsed != types.StrategyMajority {
		t.Fatalf("strategy = %s", d.StrategyUsed)
	}
}

func TestMajorityStableOnTies(t *testing.T) {
	e := New(NewTrustTable())
	task := &types.DeliberationTask{
		ID:       "t3",
		Strategy: types.StrategyMajority,
		Proposals: []types.Proposal{
			prop("first", "a", 0.8, true),
			prop("second", "b", 0.8, true),
			prop("third", "c", 0.8, true),
		},
	}
	for i := 0; i < 5; i++ {
		d, err := e.Deliberate(task)
		if err != nil {
			t.Fatal(err)
		}
		if d.ChosenSpecialist != "first" {
			t.Fatalf("run %d: chosen = %s, want first (submission order)", i, d.ChosenSpecialist)
		}
	}
}

func TestMajorityConfidenceIsWinnerWeight(t *testing.T) {
	table := NewTrustTable()
	for i := 0; i < 60; i++ {
		table.Update("alpha", true)
	}

	// Governance bonuses can push the winner's weight past 1; the decision's
	// confidence reports that weight verbatim rather than capping it.
	p := prop("alpha", "ship it", 1.0, true)
	for _, tag := range []string{"safety", "review", "style", "depth", "scope"} {
		p.Output.PolicyTags = append(p.Output.PolicyTags,
			types.PolicyTag{Name: tag, Status: types.TagCompliant})
	}

	e := New(table)
	d, err := e.Deliberate(&types.DeliberationTask{
		ID:        "t3b",
		Strategy:  types.StrategyMajority,
		Proposals: []types.Proposal{p, prop("beta", "hold off", 0.6, true)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Confidence != d.Weights["alpha"] {
		t.Fatalf("confidence = %v, want winner weight %v", d.Confidence, d.Weights["alpha"])
	}
	if d.Confidence <= 1 {
		t.Fatalf("bonus-stacked winner should weigh above 1, got %v", d.Confidence)
	}
}

func TestSoftmaxWeightsSumToOne(t *testing.T) {
	e := New(NewTrustTable())
	task := &types.DeliberationTask{
		ID:       "t4",
		Strategy: types.StrategySoftmaxWeighted,
		Proposals: []types.Proposal{
			prop("a", "x", 0.9, true),
			prop("b", "y", 0.4, false),
			prop("c", "z", 0.7, true),
		},
	}
	d, err := e.Deliberate(task)
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, w := range d.Weights {
		if w < 0 || w > 1 {
			t.Fatalf("weight %v out of [0,1]", w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Fatalf("weights sum = %v, want 1.0 +/- 1e-6", sum)
	}
	if d.Confidence != d.Weights[d.ChosenSpecialist] {
		t.Fatalf("confidence %v != winner weight %v", d.Confidence, d.Weights[d.ChosenSpecialist])
	}
}

func TestMinRiskFiltersConstraintViolators(t *testing.T) {
	e := New(NewTrustTable())
	violator := prop("risky", "fast path", 0.95, true)
	violator.Output.PolicyTags = []types.PolicyTag{
		{Name: "data_retention", Status: types.TagViolation},
	}
	task := &types.DeliberationTask{
		ID:          "t5",
		Strategy:    types.StrategyMinRisk,
		Constraints: []string{"data_retention"},
		Proposals: []types.Proposal{
			violator,
			prop("careful", "slow path", 0.7, true),
		},
	}
	d, err := e.Deliberate(task)
	if err != nil {
		t.Fatal(err)
	}
	if d.ChosenSpecialist != "careful" {
		t.Fatalf("chosen = %s, want careful", d.ChosenSpecialist)
	}
	if !d.GovernanceValidated {
		t.Fatal("min_risk decision must be governance validated")
	}
	if relaxed, _ := d.VotingSummary["constraint_filter_relaxed"].(bool); relaxed {
		t.Fatal("filter should not relax when a safe proposal exists")
	}
}

func TestMinRiskRelaxesWhenNoSafeProposal(t *testing.T) {
	e := New(NewTrustTable())
	task := &types.DeliberationTask{
		ID:       "t6",
		Strategy: types.StrategyMinRisk,
		Proposals: []types.Proposal{
			prop("only", "best of a bad set", 0.6, false),
		},
	}
	d, err := e.Deliberate(task)
	if err != nil {
		t.Fatal(err)
	}
	if d.ChosenSpecialist != "only" {
		t.Fatalf("chosen = %s, want only", d.ChosenSpecialist)
	}
	if relaxed, _ := d.VotingSummary["constraint_filter_relaxed"].(bool); !relaxed {
		t.Fatal("relaxation must be flagged in the voting summary")
	}
}

func TestUnanimousAgreement(t *testing.T) {
	e := New(NewTrustTable())
	task := &types.DeliberationTask{
		ID:       "t7",
		Strategy: types.StrategyUnanimous,
		Proposals: []types.Proposal{
			prop("a", "Deploy the fix.", 0.8, true),
			prop("b", "deploy the fix", 0.7, true),
			prop("c", "Deploy  the fix!", 0.9, true),
		},
	}
	d, err := e.Deliberate(task)
	if err != nil {
		t.Fatal(err)
	}
	if d.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", d.Confidence)
	}
	if !d.GovernanceValidated {
		t.Fatal("unanimous agreement must be governance validated")
	}
	if len(d.Dissent) != 0 {
		t.Fatalf("dissent = %v, want empty", d.Dissent)
	}
}

func TestUnanimousDisagreementIsProvisional(t *testing.T) {
	e := New(NewTrustTable())
	original := prop("a", "option one", 0.9, true)
	task := &types.DeliberationTask{
		ID:       "t8",
		Strategy: types.StrategyUnanimous,
		Proposals: []types.Proposal{
			original,
			prop("b", "option two", 0.6, true),
		},
	}
	d, err := e.Deliberate(task)
	if err != nil {
		t.Fatal(err)
	}
	if d.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want provisional 0.5", d.Confidence)
	}
	if d.GovernanceValidated {
		t.Fatal("disagreement must not be governance validated")
	}
	if !d.ChosenOutput.RequiresApproval {
		t.Fatal("provisional winner must require approval")
	}
	if original.Output.RequiresApproval {
		t.Fatal("submitted proposal must not be mutated")
	}
	if esc, _ := d.VotingSummary["requires_escalation"].(bool); !esc {
		t.Fatal("voting summary must flag escalation")
	}
	if len(d.Dissent) != 1 || d.Dissent[0] != "b" {
		t.Fatalf("dissent = %v, want [b]", d.Dissent)
	}
}

func TestRiskPenaltyOnUnderConfidentProposals(t *testing.T) {
	e := New(NewTrustTable())
	confident := prop("confident", "a", 0.95, true)
	hesitant := prop("hesitant", "b", 0.85, true)
	task := &types.DeliberationTask{
		ID:        "t9",
		Strategy:  types.StrategyMajority,
		RiskLevel: types.RiskCritical,
		Proposals: []types.Proposal{hesitant, confident},
	}
	d, err := e.Deliberate(task)
	if err != nil {
		t.Fatal(err)
	}
	if d.ChosenSpecialist != "confident" {
		t.Fatalf("chosen = %s, want confident (hesitant takes critical-risk penalty)", d.ChosenSpecialist)
	}
	if d.Weights["hesitant"] >= d.Weights["confident"] {
		t.Fatalf("penalty not applied: %v >= %v", d.Weights["hesitant"], d.Weights["confident"])
	}
}

func TestRecencyDecaysOldProposals(t *testing.T) {
	e := New(NewTrustTable())
	fresh := prop("fresh", "a", 0.8, true)
	fresh.SubmittedAt = time.Now()
	stale := prop("stale", "b", 0.8, true)
	stale.SubmittedAt = time.Now().Add(-72 * time.Hour)
	task := &types.DeliberationTask{
		ID:        "t10",
		Strategy:  types.StrategyMajority,
		Proposals: []types.Proposal{stale, fresh},
	}
	d, err := e.Deliberate(task)
	if err != nil {
		t.Fatal(err)
	}
	if d.ChosenSpecialist != "fresh" {
		t.Fatalf("chosen = %s, want fresh", d.ChosenSpecialist)
	}
}

func TestTrustTableEMA(t *testing.T) {
	table := NewTrustTable()
	if got := table.Trust("new"); got != 0.5 {
		t.Fatalf("unseen trust = %v, want 0.5", got)
	}
	table.Update("x", true)
	// 0.1*1.0 + 0.9*0.5 = 0.55
	if got := table.Trust("x"); math.Abs(got-0.55) > 1e-9 {
		t.Fatalf("trust after one success = %v, want 0.55", got)
	}
	table.Update("x", false)
	// 0.1*0 + 0.9*0.55 = 0.495
	if got := table.Trust("x"); math.Abs(got-0.495) > 1e-9 {
		t.Fatalf("trust after failure = %v, want 0.495", got)
	}
	if got := table.TrackRecord("x"); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("track record = %v, want 0.5 (one success, one failure)", got)
	}
}

func TestTrackRecordRingEvictsOldest(t *testing.T) {
	r := newTrackRecord(3)
	for _, v := range []float64{0, 0, 1, 1, 1} {
		r.Push(v)
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	if got := r.Mean(); got != 1.0 {
		t.Fatalf("mean = %v, want 1.0 after early failures evicted", got)
	}
}
