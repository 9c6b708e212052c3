// Package types provides the shared data contract used across cortex packages.
// This package exists to break import cycles between the linter, gate,
// consensus engine, memory store, and integrator. Types in this package are
// foundational data structures with no complex dependencies: every other
// subsystem consumes them, none of them mutate an Output after a specialist
// hands it over.
package types

import (
	"strings"
	"time"
)

// =============================================================================
// OUTPUT CONTRACT
// =============================================================================

// OutputType classifies what kind of result a specialist produced.
type OutputType string

const (
	OutputReasoning   OutputType = "reasoning"
	OutputDecision    OutputType = "decision"
	OutputObservation OutputType = "observation"
	OutputAction      OutputType = "action"
	OutputReflection  OutputType = "reflection"
	OutputPrediction  OutputType = "prediction"
	OutputGeneration  OutputType = "generation"
)

// Valid reports whether t is a known output type.
func (t OutputType) Valid() bool {
	switch t {
	case OutputReasoning, OutputDecision, OutputObservation, OutputAction,
		OutputReflection, OutputPrediction, OutputGeneration:
		return true
	}
	return false
}

// PolicyTagStatus is the compliance state a specialist attached to a tag.
type PolicyTagStatus string

const (
	TagCompliant      PolicyTagStatus = "compliant"
	TagRequiresReview PolicyTagStatus = "requires_review"
	TagViolation      PolicyTagStatus = "violation"
)

// Citation records a piece of supporting evidence attached to an Output.
type Citation struct {
	Source     string     `json:"source"`
	Confidence float64    `json:"confidence"` // [0,1]
	Excerpt    string     `json:"excerpt,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// PolicyTag marks an Output with a named policy and its compliance status.
type PolicyTag struct {
	Name   string          `json:"name"`
	Status PolicyTagStatus `json:"status"`
	Reason string          `json:"reason,omitempty"`
}

// Output is the uniform result envelope emitted by any specialist.
// It is immutable once handed to the pipeline: the linter, gate, trust
// scorer and memory store only ever read it.
type Output struct {
	LoopID    string     `json:"loop_id"`
	Component string     `json:"component"`
	Type      OutputType `json:"output_type"`

	// Result is the textual payload. The linter scans it for contradictions
	// and the consensus engine canonicalizes it for unanimity checks; the
	// pipeline never interprets it beyond that.
	Result string `json:"result"`

	Confidence float64 `json:"confidence"` // [0,1]

	// QualityScore is optional; nil means the specialist did not self-assess.
	QualityScore *float64 `json:"quality_score,omitempty"`

	Citations  []Citation  `json:"citations,omitempty"`
	PolicyTags []PolicyTag `json:"policy_tags,omitempty"`

	ConstitutionalCompliance bool `json:"constitutional_compliance"`
	RequiresApproval         bool `json:"requires_approval"`

	Diagnostics []string `json:"diagnostics,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Errors      []string `json:"errors,omitempty"`

	Importance float64    `json:"importance"` // [0,1]
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasErrors reports whether the specialist attached any error diagnostics.
func (o *Output) HasErrors() bool {
	return len(o.Errors) > 0
}

// MeanCitationConfidence averages citation confidences, 0 when there are none.
// Missing evidence is treated as zero evidence quality, not an error.
func (o *Output) MeanCitationConfidence() float64 {
	if len(o.Citations) == 0 {
		return 0
	}
	var sum float64
	for _, c := range o.Citations {
		sum += c.Confidence
	}
	return sum / float64(len(o.Citations))
}

// Expired reports whether the output's expiry has already passed at now.
func (o *Output) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// CanonicalResult normalizes the result text for equality comparison:
// lowercased, whitespace collapsed, trailing sentence punctuation stripped.
// Used by the consensus engine's unanimity check.
func (o *Output) CanonicalResult() string {
	s := strings.Join(strings.Fields(strings.ToLower(o.Result)), " ")
	return strings.TrimRight(s, ".!? ")
}
