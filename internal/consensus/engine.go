// Package consensus arbitrates among competing specialist proposals. This
// is single-process arbitration over in-memory proposals, not a distributed
// consensus protocol: one deliberation scores every proposal, applies the
// task's strategy, and returns an immutable decision. The engine owns a
// per-specialist trust table whose updates are serialized; deliberations
// only read it.
package consensus

import (
	"fmt"
	"math"
	"sort"
	"time"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// Proposal-score weights.
const (
	weightTrust       = 0.30
	weightTrackRecord = 0.25
	weightRecency     = 0.15
	weightConfidence  = 0.20
)

// softmaxTemperature flattens or sharpens the softmax distribution.
const softmaxTemperature = 0.5

// Engine runs deliberations against a shared specialist trust table.
type Engine struct {
	table *TrustTable
	now   func() time.Time
}

// New creates an engine around the given trust table.
func New(table *TrustTable) *Engine {
	if table == nil {
		table = NewTrustTable()
	}
	return &Engine{table: table, now: time.Now}
}

// Table exposes the engine's trust table for reporting and updates.
func (e *Engine) Table() *TrustTable { return e.table }

// UpdateSpecialistTrust records one observed outcome for a specialist.
func (e *Engine) UpdateSpecialistTrust(specialist string, success bool) {
	e.table.Update(specialist, success)
}

// scored pairs a proposal with its computed score, preserving the original
// submission index so equal scores keep their order.
type scored struct {
	proposal types.Proposal
	score    float64
	index    int
}

// Deliberate selects one proposal via the task's strategy.
func (e *Engine) Deliberate(task *types.DeliberationTask) (*types.ConsensusDecision, error) {
	if len(task.Proposals) == 0 {
		return nil, types.ErrEmptyProposalSet
	}
	strategy := task.Strategy
	if !strategy.Valid() {
		strategy = types.StrategyMajority
	}

	ranked := e.score(task)

	var decision *types.ConsensusDecision
	switch strategy {
	case types.StrategySoftmaxWeighted:
		decision = e.softmaxWeighted(ranked)
	case types.StrategyMinRisk:
		decision = e.minRisk(task, ranked)
	case types.StrategyUnanimous:
		decision = e.unanimous(ranked)
	default:
		decision = e.majority(ranked)
	}

	decision.TaskID = task.ID
	decision.StrategyUsed = strategy
	logging.Consensus("deliberate task=%s strategy=%s proposals=%d winner=%s confidence=%.3f",
		task.ID, strategy, len(task.Proposals), decision.ChosenSpecialist, decision.Confidence)
	return decision, nil
}

// score computes every proposal's composite score and sorts descending.
// The sort is stable: equal scores keep submission order (determinism).
func (e *Engine) score(task *types.DeliberationTask) []scored {
	now := e.now()
	ranked := make([]scored, len(task.Proposals))
	for i, p := range task.Proposals {
		ranked[i] = scored{proposal: p, index: i, score: e.scoreProposal(task, p, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}

func (e *Engine) scoreProposal(task *types.DeliberationTask, p types.Proposal, now time.Time) float64 {
	recency := 1.0
	if !p.SubmittedAt.IsZero() {
		ageHours := now.Sub(p.SubmittedAt).Hours()
		if ageHours > 0 {
			recency = 1 / (1 + ageHours/24)
		}
	}

	score := e.table.Trust(p.Specialist)*weightTrust +
		e.table.TrackRecord(p.Specialist)*weightTrackRecord +
		recency*weightRecency +
		p.Output.Confidence*weightConfidence

	// Governance bonus rewards compliance and compliant tagging.
	bonus := 1.0
	if p.Output.ConstitutionalCompliance {
		bonus *= 1.1
	}
	compliantTags := 0
	for _, tag := range p.Output.PolicyTags {
		if tag.Status == types.TagCompliant {
			compliantTags++
		}
	}
	bonus *= 1 + 0.05*float64(compliantTags)
	score *= bonus

	// Under-confident proposals on risky tasks are penalized.
	risk := p.RiskLevel
	if risk == "" {
		risk = task.RiskLevel
	}
	switch {
	case risk == types.RiskCritical && p.Output.Confidence < 0.9:
		score *= 0.8
	case risk == types.RiskHigh && p.Output.Confidence < 0.8:
		score *= 0.9
	}
	return score
}

// majority: the top-scored proposal wins outright.
func (e *Engine) majority(ranked []scored) *types.ConsensusDecision {
	winner := ranked[0]
	d := &types.ConsensusDecision{
		ChosenOutput:     winner.proposal.Output,
		ChosenSpecialist: winner.proposal.Specialist,
		Weights:          make(map[string]float64, len(ranked)),
		Dissent:          []string{},
		Confidence:       winner.score,
	}
	for _, s := range ranked {
		d.Weights[s.proposal.Specialist] = s.score
		if s.index != winner.index {
			d.Dissent = append(d.Dissent, s.proposal.Specialist)
		}
	}
	return d
}

// softmaxWeighted: scores become a probability distribution; the argmax wins.
func (e *Engine) softmaxWeighted(ranked []scored) *types.ConsensusDecision {
	// Numerically stabilized: shift by the max before exponentiating.
	maxScore := ranked[0].score
	for _, s := range ranked {
		if s.score > maxScore {
			maxScore = s.score
		}
	}
	var sum float64
	probs := make([]float64, len(ranked))
	for i, s := range ranked {
		probs[i] = math.Exp((s.score - maxScore) / softmaxTemperature)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	// ranked is sorted by score descending with stable ties, so the first
	// entry is the argmax with the earliest submission order.
	winner := 0
	d := &types.ConsensusDecision{
		ChosenOutput:     ranked[winner].proposal.Output,
		ChosenSpecialist: ranked[winner].proposal.Specialist,
		Weights:          make(map[string]float64, len(ranked)),
		Dissent:          []string{},
		Confidence:       probs[winner],
	}
	for i, s := range ranked {
		d.Weights[s.proposal.Specialist] = probs[i]
		if i != winner {
			d.Dissent = append(d.Dissent, s.proposal.Specialist)
		}
	}
	return d
}

// minRisk: prefer compliant proposals that violate no task constraint.
// When none qualify the filter relaxes to all proposals with a compliance
// discount, and the decision says so — callers may choose to escalate a
// no-safe-option deliberation instead of acting on it.
func (e *Engine) minRisk(task *types.DeliberationTask, ranked []scored) *types.ConsensusDecision {
	var safe []scored
	for _, s := range ranked {
		if s.proposal.Output.ConstitutionalCompliance && !violatesAny(s.proposal, task.Constraints) {
			safe = append(safe, s)
		}
	}

	relaxed := false
	pool := safe
	if len(pool) == 0 {
		relaxed = true
		pool = make([]scored, len(ranked))
		copy(pool, ranked)
		for i := range pool {
			if !pool[i].proposal.Output.ConstitutionalCompliance {
				pool[i].score *= 0.5
			}
		}
	}

	// Pick the proposal maximizing score x confidence; stable on ties.
	winner := pool[0]
	best := winner.score * winner.proposal.Output.Confidence
	for _, s := range pool[1:] {
		if v := s.score * s.proposal.Output.Confidence; v > best {
			best = v
			winner = s
		}
	}

	d := &types.ConsensusDecision{
		ChosenOutput:        winner.proposal.Output,
		ChosenSpecialist:    winner.proposal.Specialist,
		Weights:             make(map[string]float64, len(ranked)),
		Dissent:             []string{},
		Confidence:          winner.proposal.Output.Confidence,
		GovernanceValidated: true,
		VotingSummary: map[string]any{
			"constraint_filter_relaxed": relaxed,
			"safe_pool_size":            len(safe),
		},
	}
	for _, s := range ranked {
		d.Weights[s.proposal.Specialist] = s.score
		if s.index != winner.index {
			d.Dissent = append(d.Dissent, s.proposal.Specialist)
		}
	}
	return d
}

// unanimous: full agreement on the canonical result, or a provisional pick
// that must be approved downstream.
func (e *Engine) unanimous(ranked []scored) *types.ConsensusDecision {
	canonical := ranked[0].proposal.Output.CanonicalResult()
	agree := true
	for _, s := range ranked[1:] {
		if s.proposal.Output.CanonicalResult() != canonical {
			agree = false
			break
		}
	}

	d := &types.ConsensusDecision{
		Weights: make(map[string]float64, len(ranked)),
		Dissent: []string{},
	}
	for _, s := range ranked {
		d.Weights[s.proposal.Specialist] = s.score
	}

	winner := ranked[0]
	if agree {
		d.ChosenOutput = winner.proposal.Output
		d.ChosenSpecialist = winner.proposal.Specialist
		d.Confidence = 1.0
		d.GovernanceValidated = true
		return d
	}

	// Provisional: the top proposal goes forward flagged for approval.
	// The chosen output is copied so the specialist's original stays
	// untouched.
	chosen := *winner.proposal.Output
	chosen.RequiresApproval = true
	d.ChosenOutput = &chosen
	d.ChosenSpecialist = winner.proposal.Specialist
	d.Confidence = 0.5
	d.GovernanceValidated = false
	d.VotingSummary = map[string]any{"requires_escalation": true}
	for _, s := range ranked {
		if s.index != winner.index {
			d.Dissent = append(d.Dissent, s.proposal.Specialist)
		}
	}
	return d
}

// violatesAny reports whether a proposal breaches any named constraint.
// A constraint names a policy tag the proposal must not carry in violation.
func violatesAny(p types.Proposal, constraints []string) bool {
	for _, c := range constraints {
		for _, tag := range p.Output.PolicyTags {
			if tag.Name == c && tag.Status == types.TagViolation {
				return true
			}
		}
	}
	return false
}

// String renders a short human-readable form for logs and the CLI.
func Describe(d *types.ConsensusDecision) string {
	return fmt.Sprintf("%s via %s (confidence %.3f, %d dissenting)",
		d.ChosenSpecialist, d.StrategyUsed, d.Confidence, len(d.Dissent))
}
