package types

import (
	"context"
)

// ComplianceViolation is one principle breach reported by the checker.
type ComplianceViolation struct {
	Principle string   `json:"principle"`
	Severity  Severity `json:"severity"`
	Detail    string   `json:"detail,omitempty"`
}

// ComplianceResult is what a ComplianceChecker returns for one Output.
type ComplianceResult struct {
	PrinciplesChecked  []string              `json:"principles_checked"`
	ComplianceScore    float64               `json:"compliance_score"` // [0,1]
	Violations         []ComplianceViolation `json:"violations"`
	NeedsClarification bool                  `json:"needs_clarification"`
}

// ComplianceChecker evaluates an act against the constitution.
// The checker is selected at construction time: a rule-backed checker for
// real deployments, NullChecker for standalone operation. There is no
// runtime fallback between the two.
type ComplianceChecker interface {
	Check(ctx context.Context, actor string, actionType OutputType, resource string,
		checkCtx map[string]any, confidence float64) (*ComplianceResult, error)
}

// AuditRecord is one durable, ordered audit entry.
type AuditRecord struct {
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Subsystem string         `json:"subsystem"`
	Payload   map[string]any `json:"payload,omitempty"`
	Result    string         `json:"result"`
}

// AuditLedger appends durable audit records. Append failures propagate to
// the caller; the pipeline never swallows a failed audit write.
type AuditLedger interface {
	Append(ctx context.Context, rec AuditRecord) error
}

// EventPublisher delivers pipeline events. Fire-and-forget, at-least-once,
// no ordering guarantee across event types.
type EventPublisher interface {
	Publish(eventType string, payload map[string]any)
}

// Event types emitted by the integrator.
const (
	EventConstitutionalViolation = "constitutional_violation"
	EventGovernanceEscalation    = "governance_escalation"
	EventTrustScoreUpdated       = "trust_score_updated"
	EventFeedbackRecorded        = "feedback_recorded"
)

// ReputationSource supplies per-component reputation for provenance scoring.
// Unknown components get the default reputation (0.70).
type ReputationSource interface {
	Reputation(component string) float64
}

// RelevanceFunc scores an artifact's relevance to a read query in [0,1].
// Semantic relevance is an injectable hook: the store defaults to 1.0.
type RelevanceFunc func(q ReadQuery, a *MemoryArtifact) float64
