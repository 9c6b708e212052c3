package gate

import (
	"context"

	"cortex/internal/types"
)

// NullChecker is the standalone compliance strategy: no rule engine wired.
// It scores 1.0 when configured compliant and 0.0 otherwise, checks no
// principles, and never needs clarification. Selecting it is an explicit
// construction-time decision, never a fallback after a failed probe.
type NullChecker struct {
	Compliant bool
}

// Check implements types.ComplianceChecker.
func (n NullChecker) Check(_ context.Context, _ string, _ types.OutputType, _ string,
	_ map[string]any, _ float64) (*types.ComplianceResult, error) {
	score := 0.0
	if n.Compliant {
		score = 1.0
	}
	return &types.ComplianceResult{ComplianceScore: score}, nil
}
