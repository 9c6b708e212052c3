// Package gate implements the constitutional compliance gate. It delegates
// principle evaluation to a ComplianceChecker chosen at construction time
// (a Mangle rule checker in real deployments, NullChecker standalone) and
// turns the result into a Verdict via a first-match-wins decision ladder.
// Every validation writes one audit record; a failed audit write fails the
// whole call.
package gate

import (
	"context"
	"strings"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// Thresholds of the decision ladder and risk tagging.
const (
	degradeScoreThreshold  = 0.9
	highRiskScoreThreshold = 0.85
	highRiskConfidence     = 0.7
)

// sensitiveTagFragments mark policy tags whose presence forces redaction.
var sensitiveTagFragments = []string{"privacy", "security", "credentials", "pii"}

// sensitiveTextFragments mark result text that forces redaction.
var sensitiveTextFragments = []string{"password", "token", "secret", "key", "credential"}

// Gate validates outputs against the constitution.
type Gate struct {
	checker types.ComplianceChecker
	ledger  types.AuditLedger
}

// New builds a gate around the given checker and ledger. The checker is
// fixed for the gate's lifetime; there is no runtime fallback.
func New(checker types.ComplianceChecker, ledger types.AuditLedger) *Gate {
	return &Gate{checker: checker, ledger: ledger}
}

// Validate produces the Verdict for one output.
func (g *Gate) Validate(ctx context.Context, o *types.Output) (*types.Verdict, error) {
	res, err := g.checker.Check(ctx, o.Component, o.Type, o.LoopID, map[string]any{
		"loop_id":           o.LoopID,
		"policy_tags":       o.PolicyTags,
		"has_errors":        o.HasErrors(),
		"requires_approval": o.RequiresApproval,
	}, o.Confidence)
	if err != nil {
		return nil, &types.ExternalDependencyError{Dependency: "compliance_checker", Err: err}
	}

	v := g.decide(o, res)

	if err := g.ledger.Append(ctx, types.AuditRecord{
		Actor:     o.Component,
		Action:    "validate",
		Resource:  o.LoopID,
		Subsystem: "gate",
		Payload: map[string]any{
			"decision":         string(v.Decision),
			"compliance_score": v.ComplianceScore,
			"tags":             v.Tags,
		},
		Result: string(v.Decision),
	}); err != nil {
		return nil, &types.ExternalDependencyError{Dependency: "audit_ledger", Err: err}
	}

	logging.Gate("validate %s/%s: decision=%s score=%.2f tags=%v",
		o.Component, o.LoopID, v.Decision, v.ComplianceScore, v.Tags)
	return v, nil
}

// decide applies the ladder: BLOCK, then ESCALATE, then DEGRADE, then GO.
func (g *Gate) decide(o *types.Output, res *types.ComplianceResult) *types.Verdict {
	v := &types.Verdict{
		ComplianceScore:   res.ComplianceScore,
		Severity:          maxViolationSeverity(res.Violations),
		RequiresApproval:  res.NeedsClarification,
		PrinciplesChecked: res.PrinciplesChecked,
	}

	switch {
	case hasCriticalViolation(res.Violations) || !o.ConstitutionalCompliance:
		v.Decision = types.DecisionBlock
		v.RemediationActions = []types.RemediationAction{
			types.RemediationBlock, types.RemediationLog, types.RemediationNotify,
		}
	case res.NeedsClarification || o.RequiresApproval:
		v.Decision = types.DecisionEscalate
		v.RemediationActions = []types.RemediationAction{
			types.RemediationEscalate, types.RemediationLog,
		}
	case len(res.Violations) > 0 || res.ComplianceScore < degradeScoreThreshold:
		v.Decision = types.DecisionDegrade
		v.RemediationActions = []types.RemediationAction{
			types.RemediationDowngrade, types.RemediationLog,
		}
	default:
		v.Decision = types.DecisionGo
		v.RemediationActions = []types.RemediationAction{types.RemediationLog}
	}

	// Risk tagging is orthogonal to the decision.
	if res.ComplianceScore < highRiskScoreThreshold || o.Confidence < highRiskConfidence || o.HasErrors() {
		v.Tags = append(v.Tags, "high_risk")
	}
	if isSensitive(o) {
		v.Tags = append(v.Tags, "sensitive_content")
		v.RemediationActions = appendUnique(v.RemediationActions, types.RemediationRedact)
	}
	v.RemediationActions = dedupe(v.RemediationActions)
	return v
}

func hasCriticalViolation(vs []types.ComplianceViolation) bool {
	for _, v := range vs {
		if v.Severity == types.SeverityCritical {
			return true
		}
	}
	return false
}

func maxViolationSeverity(vs []types.ComplianceViolation) types.Severity {
	max := types.SeverityInfo
	for _, v := range vs {
		max = types.MaxSeverity(max, v.Severity)
	}
	return max
}

// isSensitive reports whether the output touches redaction-worthy material,
// by policy tag name or by result text.
func isSensitive(o *types.Output) bool {
	for _, tag := range o.PolicyTags {
		name := strings.ToLower(tag.Name)
		for _, frag := range sensitiveTagFragments {
			if strings.Contains(name, frag) {
				return true
			}
		}
	}
	text := strings.ToLower(o.Result)
	for _, frag := range sensitiveTextFragments {
		if strings.Contains(text, frag) {
			return true
		}
	}
	return false
}

func appendUnique(actions []types.RemediationAction, a types.RemediationAction) []types.RemediationAction {
	for _, existing := range actions {
		if existing == a {
			return actions
		}
	}
	return append(actions, a)
}

func dedupe(actions []types.RemediationAction) []types.RemediationAction {
	seen := make(map[types.RemediationAction]bool, len(actions))
	out := actions[:0]
	for _, a := range actions {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
