package types

// =============================================================================
// LINT TYPES
// =============================================================================

// Severity orders lint findings. Rank() gives the comparison order
// (CRITICAL > ERROR > WARNING > INFO).
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the numeric ordering of a severity; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 0
	}
	return -1
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Lint check identifiers. Every check runs unconditionally; findings union.
const (
	CheckDirectConflict          = "direct_conflict"
	CheckPolicyDrift             = "policy_drift"
	CheckCausalMismatch          = "causal_mismatch"
	CheckTemporalInconsistency   = "temporal_inconsistency"
	CheckMemoryConflict          = "memory_conflict"
	CheckKnowledgeConflict       = "knowledge_conflict"
	CheckConstitutionalAlignment = "constitutional_alignment"
)

// Violation is a single finding produced by the linter.
type Violation struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// Subject identifies what the finding is about (citation source,
	// policy tag name, antonym pair...), when applicable.
	Subject string `json:"subject,omitempty"`
}

// Patch is a suggested remediation for one Violation.
type Patch struct {
	Check           string  `json:"check"`
	Description     string  `json:"description"`
	SafeToAutoApply bool    `json:"safe_to_auto_apply"`
	Confidence      float64 `json:"confidence"`
	// EscalateTo names who should handle a non-auto patch: "specialist"
	// for conflicting re-emission, "governance" for CRITICAL findings.
	EscalateTo string `json:"escalate_to,omitempty"`
}

// LintReport is the result of linting one Output.
type LintReport struct {
	Violations     []Violation `json:"violations"`
	Fixes          []Patch     `json:"fixes"`
	Severity       Severity    `json:"severity"`
	Passed         bool        `json:"passed"`
	AutoRemediable bool        `json:"auto_remediable"`
	Summary        string      `json:"summary"`
}
