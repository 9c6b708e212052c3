// Package trust implements the scoring arithmetic for memory artifacts:
// initial write-time scores, read-time boosts, time decay, and rank
// composition. Every function is pure; the memory store and integrator call
// in here, nothing calls out. Malformed inputs degrade to neutral values
// rather than errors.
package trust

import (
	"math"

	"cortex/internal/types"
)

// DefaultReputation is the provenance assumed for unknown components.
const DefaultReputation = 0.70

// Total-score weights across the four trust signals.
const (
	weightProvenance = 0.30
	weightConsensus  = 0.25
	weightGovernance = 0.30
	weightUsage      = 0.15
)

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoreOnWrite computes the initial trust signals for an output about to be
// persisted. rep may be nil, in which case every component scores the
// default reputation.
func ScoreOnWrite(o *types.Output, rep types.ReputationSource) types.TrustSignals {
	reputation := DefaultReputation
	if rep != nil {
		reputation = rep.Reputation(o.Component)
	}

	provenance := reputation*0.6 + o.Confidence*0.4

	// The consensus signal defers to the specialist's self-assessment when
	// present, otherwise its stated confidence.
	consensus := o.Confidence
	if o.QualityScore != nil {
		consensus = *o.QualityScore
	}

	governance := 1.0
	if !o.ConstitutionalCompliance {
		governance = 0.3
	}
	if o.RequiresApproval {
		governance *= 0.8
	}
	if o.HasErrors() {
		governance *= 0.7
	}
	for _, tag := range o.PolicyTags {
		switch tag.Status {
		case types.TagViolation:
			governance *= 0.5
		case types.TagRequiresReview:
			governance *= 0.8
		}
	}

	usage := 0.0 // nothing has used a new artifact yet

	total := Clamp(provenance*weightProvenance +
		consensus*weightConsensus +
		governance*weightGovernance +
		usage*weightUsage)

	return types.TrustSignals{
		Provenance: Clamp(provenance),
		Consensus:  Clamp(consensus),
		Governance: Clamp(governance),
		Usage:      usage,
		Total:      total,
	}
}

// ScoreOnRead adjusts trust after a usage outcome. Boosts shrink as the
// success count grows and penalties shrink as failures accumulate, so
// repeated identical outcomes move the score by strictly decreasing steps.
// Counters are the values before this usage was recorded.
func ScoreOnRead(trust float64, accessCount, successCount, failureCount int, outcome types.Outcome) float64 {
	switch outcome {
	case types.OutcomeSuccess:
		trust += 0.05 / (1 + float64(successCount)*0.1)
	case types.OutcomeFailure:
		trust -= 0.08 / (1 + float64(failureCount)*0.05)
	}

	// Consistency bonus for artifacts with a proven track record.
	if accessCount > 5 && float64(successCount)/float64(accessCount) > 0.8 {
		trust += 0.02
	}

	return Clamp(trust)
}

// ApplyDecay reduces trust for elapsed idle hours. All three curves are
// monotonically non-increasing in elapsed time; elapsed <= 0 is a no-op.
func ApplyDecay(trust float64, curve types.DecayCurve, halfLifeHours, elapsedHours float64) float64 {
	if elapsedHours <= 0 || halfLifeHours <= 0 {
		return trust
	}
	switch curve {
	case types.DecayHyperbolic:
		return trust / (1 + elapsedHours/halfLifeHours)
	case types.DecayExponential:
		return trust * math.Exp2(-elapsedHours/halfLifeHours)
	case types.DecayLinear:
		return trust * math.Max(0, 1-elapsedHours/(2*halfLifeHours))
	}
	return trust
}

// RecommendDecayCurve maps an output type to its retention profile.
// Slow-burn cognition (reasoning, reflection) hangs around; perishable
// output (observations, generations) fades fast.
func RecommendDecayCurve(t types.OutputType) (types.DecayCurve, float64) {
	switch t {
	case types.OutputReasoning:
		return types.DecayHyperbolic, 168
	case types.OutputDecision:
		return types.DecayHyperbolic, 120
	case types.OutputReflection:
		return types.DecayHyperbolic, 240
	case types.OutputObservation:
		return types.DecayLinear, 48
	case types.OutputAction:
		return types.DecayExponential, 72
	case types.OutputPrediction:
		return types.DecayExponential, 96
	case types.OutputGeneration:
		return types.DecayLinear, 24
	}
	return types.DecayHyperbolic, 168
}

// ComputeMemoryRank combines the read-time ranking signals.
func ComputeMemoryRank(trust, relevance, recency, importance float64) float64 {
	return Clamp(trust*0.40 + relevance*0.35 + recency*0.15 + importance*0.10)
}

// UpdateUsageSignal recomputes an artifact's usage score from its counters.
func UpdateUsageSignal(accessCount, successCount int) float64 {
	successRate := 0.0
	if accessCount > 0 {
		successRate = float64(successCount) / float64(accessCount)
	}
	return Clamp(successRate*0.7 + math.Min(1, float64(accessCount)/20)*0.3)
}
