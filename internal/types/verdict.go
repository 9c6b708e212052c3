package types

// =============================================================================
// CONSTITUTIONAL VERDICT
// =============================================================================

// Decision is the gate's ruling on an Output.
type Decision string

const (
	DecisionGo       Decision = "GO"
	DecisionDegrade  Decision = "DEGRADE"
	DecisionEscalate Decision = "ESCALATE"
	DecisionBlock    Decision = "BLOCK"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionGo, DecisionDegrade, DecisionEscalate, DecisionBlock:
		return true
	}
	return false
}

// RemediationAction is a follow-up the gate attaches to a verdict.
type RemediationAction string

const (
	RemediationBlock     RemediationAction = "BLOCK"
	RemediationEscalate  RemediationAction = "ESCALATE"
	RemediationDowngrade RemediationAction = "DOWNGRADE"
	RemediationRedact    RemediationAction = "REDACT"
	RemediationLog       RemediationAction = "LOG"
	RemediationNotify    RemediationAction = "NOTIFY"
)

// Verdict is the gate's ruling on a single Output. Created once per Output,
// never mutated afterwards.
type Verdict struct {
	Decision           Decision            `json:"decision"`
	Tags               []string            `json:"tags,omitempty"`
	RemediationActions []RemediationAction `json:"remediation_actions"`
	ComplianceScore    float64             `json:"compliance_score"` // [0,1]
	Severity           Severity            `json:"severity"`
	RequiresApproval   bool                `json:"requires_approval"`
	PrinciplesChecked  []string            `json:"principles_checked,omitempty"`
}

// SafeToStore reports whether the artifact may be persisted at all.
// Only a BLOCK forbids storage.
func (v *Verdict) SafeToStore() bool {
	return v.Decision != DecisionBlock
}

// IsApproved reports whether the output passed governance well enough to be
// written to memory. ESCALATE parks the output pending review; BLOCK kills it.
func (v *Verdict) IsApproved() bool {
	return v.Decision == DecisionGo || v.Decision == DecisionDegrade
}

// NeedsEscalation reports whether a governance escalation event should fire.
func (v *Verdict) NeedsEscalation() bool {
	return v.Decision == DecisionEscalate
}

// HasTag reports whether the verdict carries the named tag.
func (v *Verdict) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
