package types

import "time"

// =============================================================================
// MEMORY TYPES
// =============================================================================

// DecayCurve selects how an artifact's trust decays over idle time.
type DecayCurve string

const (
	DecayHyperbolic  DecayCurve = "hyperbolic"
	DecayExponential DecayCurve = "exponential"
	DecayLinear      DecayCurve = "linear"
)

// Valid reports whether c is a known decay curve.
func (c DecayCurve) Valid() bool {
	switch c {
	case DecayHyperbolic, DecayExponential, DecayLinear:
		return true
	}
	return false
}

// Outcome labels a usage of a memory artifact.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeNeutral Outcome = "neutral"
)

// TrustSignals are the per-dimension inputs to an artifact's initial trust.
// Each component is in [0,1]; Total combines them with fixed weights.
type TrustSignals struct {
	Provenance float64 `json:"provenance"`
	Consensus  float64 `json:"consensus"`
	Governance float64 `json:"governance"`
	Usage      float64 `json:"usage"`
	Total      float64 `json:"total"`
}

// MemoryRef identifies one stored artifact.
type MemoryRef struct {
	Ref    string `json:"ref"`
	Domain string `json:"domain"`
}

// MemoryArtifact is the persisted superset of an Output.
// Rows are owned exclusively by the memory store: only UpdateTrust mutates
// score and counters, only GarbageCollect flips the archive/delete flags,
// and nothing ever deletes a row physically.
type MemoryArtifact struct {
	Ref      string `json:"ref"`
	Domain   string `json:"domain"`
	Category string `json:"category,omitempty"`

	Output Output `json:"output"`

	TrustScore    float64    `json:"trust_score"`
	DecayCurve    DecayCurve `json:"decay_curve"`
	HalfLifeHours float64    `json:"half_life_hours"`
	UsageScore    float64    `json:"usage_score"`

	AccessCount  int `json:"access_count"`
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`

	IsArchived bool `json:"is_archived"`
	IsDeleted  bool `json:"is_deleted"` // terminal: set once, never cleared

	StoredAt       time.Time  `json:"stored_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// MemoryHit is one ranked read result.
type MemoryHit struct {
	Artifact  *MemoryArtifact `json:"artifact"`
	Trust     float64         `json:"trust"` // decay-adjusted when requested
	Relevance float64         `json:"relevance"`
	Recency   float64         `json:"recency"`
	Rank      float64         `json:"rank"`
}

// ReadQuery AND-matches artifact identity fields; zero values match anything.
type ReadQuery struct {
	Component  string     `json:"component,omitempty"`
	OutputType OutputType `json:"output_type,omitempty"`
	LoopID     string     `json:"loop_id,omitempty"`
}

// ReadFilters are additional predicates applied before ranking.
type ReadFilters struct {
	Domain   string `json:"domain,omitempty"`
	Category string `json:"category,omitempty"`
	// MinTrust filters on the stored trust score, before decay. A long-idle
	// artifact that was originally trusted still passes the filter even
	// though its decayed trust (used for ranking) may be far lower.
	MinTrust                 *float64 `json:"min_trust,omitempty"`
	ConstitutionalCompliance *bool    `json:"constitutional_compliance,omitempty"`
}

// TrustEvent is one entry in an artifact's trust provenance history.
// Events are append-only; the history is the write-once provenance record.
type TrustEvent struct {
	ID          int64     `json:"id"`
	Ref         string    `json:"ref"`
	TrustBefore float64   `json:"trust_before"`
	TrustAfter  float64   `json:"trust_after"`
	Reason      string    `json:"reason"`
	Outcome     Outcome   `json:"outcome,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GCPolicy governs one garbage collection pass.
type GCPolicy struct {
	MinTrustThreshold float64  `json:"min_trust_threshold" yaml:"min_trust_threshold"`
	MaxAgeHours       *float64 `json:"max_age_hours,omitempty" yaml:"max_age_hours"`
	DeleteThreshold   float64  `json:"delete_threshold" yaml:"delete_threshold"`
	MaxArtifacts      *int     `json:"max_artifacts,omitempty" yaml:"max_artifacts"`
	DryRun            bool     `json:"dry_run" yaml:"dry_run"`
}

// GCResult reports what a garbage collection pass did (or would do, dry run).
type GCResult struct {
	Scanned  int `json:"scanned"`
	Archived int `json:"archived"`
	Deleted  int `json:"deleted"`
}
