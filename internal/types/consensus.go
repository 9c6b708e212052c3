package types

import "time"

// =============================================================================
// CONSENSUS TYPES
// =============================================================================

// Strategy selects how the consensus engine arbitrates among proposals.
type Strategy string

const (
	StrategyMajority        Strategy = "majority"
	StrategySoftmaxWeighted Strategy = "softmax_weighted"
	StrategyMinRisk         Strategy = "min_risk"
	StrategyUnanimous       Strategy = "unanimous"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyMajority, StrategySoftmaxWeighted, StrategyMinRisk, StrategyUnanimous:
		return true
	}
	return false
}

// RiskLevel classifies how dangerous acting on a proposal would be.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Proposal is one specialist's candidate Output in a deliberation.
type Proposal struct {
	Specialist  string    `json:"specialist"`
	Output      *Output   `json:"output"`
	RiskLevel   RiskLevel `json:"risk_level,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// DeliberationTask bundles competing proposals for one decision point.
type DeliberationTask struct {
	ID        string     `json:"id"`
	Strategy  Strategy   `json:"strategy"`
	Proposals []Proposal `json:"proposals"`
	// Constraints name policy tags that a winning proposal must not violate
	// under the min_risk strategy.
	Constraints []string  `json:"constraints,omitempty"`
	RiskLevel   RiskLevel `json:"risk_level,omitempty"`
}

// ConsensusDecision records the outcome of one deliberation.
// Created once, immutable.
type ConsensusDecision struct {
	TaskID              string             `json:"task_id"`
	ChosenOutput        *Output            `json:"chosen_output"`
	ChosenSpecialist    string             `json:"chosen_specialist"`
	Weights             map[string]float64 `json:"weights"` // specialist -> score/probability
	Dissent             []string           `json:"dissent"` // specialists whose proposal lost
	Confidence          float64            `json:"confidence"`
	StrategyUsed        Strategy           `json:"strategy_used"`
	GovernanceValidated bool               `json:"governance_validated"`
	VotingSummary       map[string]any     `json:"voting_summary,omitempty"`
}
