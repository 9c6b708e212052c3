package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cortex/internal/logging"
	"cortex/internal/trust"
	"cortex/internal/types"
)

// DefaultReadLimit caps a Read when the caller passes k <= 0.
const DefaultReadLimit = 10

// recencyHalfPointHours: an artifact one week old has recency 0.5.
const recencyHalfPointHours = 168.0

// Read returns up to k ranked hits. Query fields AND-match identity
// columns; filters narrow further. Archived and deleted artifacts never
// surface. Ranking uses decay-adjusted trust when applyDecay is set, while
// the MinTrust filter deliberately compares against the stored score (see
// types.ReadFilters).
func (s *Store) Read(ctx context.Context, query *types.ReadQuery, k int, applyDecay bool, filters *types.ReadFilters) ([]types.MemoryHit, error) {
	if k <= 0 {
		k = DefaultReadLimit
	}

	where := "is_archived = 0 AND is_deleted = 0"
	var args []any
	if query != nil {
		if query.Component != "" {
			where += " AND component = ?"
			args = append(args, query.Component)
		}
		if query.OutputType != "" {
			where += " AND output_type = ?"
			args = append(args, string(query.OutputType))
		}
		if query.LoopID != "" {
			where += " AND loop_id = ?"
			args = append(args, query.LoopID)
		}
	}
	if filters != nil {
		if filters.Domain != "" {
			where += " AND domain = ?"
			args = append(args, filters.Domain)
		}
		if filters.Category != "" {
			where += " AND category = ?"
			args = append(args, filters.Category)
		}
		if filters.MinTrust != nil {
			where += " AND trust_score >= ?"
			args = append(args, *filters.MinTrust)
		}
		if filters.ConstitutionalCompliance != nil {
			where += " AND constitutional_compliance = ?"
			args = append(args, boolInt(*filters.ConstitutionalCompliance))
		}
	}

	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref, domain, category,
			loop_id, component, output_type, result, confidence, quality_score,
			citations, policy_tags, constitutional_compliance, requires_approval,
			diagnostics, warnings, errors, importance, expires_at, created_at,
			trust_score, decay_curve, half_life_hours, usage_score,
			access_count, success_count, failure_count,
			is_archived, is_deleted, stored_at, last_accessed_at
		FROM artifacts WHERE `+where+` ORDER BY rowid ASC`, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	artifacts, err := scanArtifacts(rows)
	rows.Close()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	hits := make([]types.MemoryHit, 0, len(artifacts))
	for _, a := range artifacts {
		adjusted := a.TrustScore
		if applyDecay && a.LastAccessedAt != nil {
			elapsed := now.Sub(*a.LastAccessedAt).Hours()
			adjusted = trust.ApplyDecay(a.TrustScore, a.DecayCurve, a.HalfLifeHours, elapsed)
		}

		relevance := 1.0
		if s.relevance != nil {
			var q types.ReadQuery
			if query != nil {
				q = *query
			}
			relevance = trust.Clamp(s.relevance(q, a))
		}

		ageHours := now.Sub(a.StoredAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		recency := 1 / (1 + ageHours/recencyHalfPointHours)

		hits = append(hits, types.MemoryHit{
			Artifact:  a,
			Trust:     adjusted,
			Relevance: relevance,
			Recency:   recency,
			Rank:      trust.ComputeMemoryRank(adjusted, relevance, recency, a.Output.Importance),
		})
	}

	// Stable sort: equal ranks keep insertion order, so repeated reads with
	// no intervening writes return identical orderings.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Rank > hits[j].Rank })
	if len(hits) > k {
		hits = hits[:k]
	}
	logging.MemoryDebug("read matched=%d returned=%d decay=%v", len(artifacts), len(hits), applyDecay)
	return hits, nil
}

// Get returns a single artifact by ref, including archived ones. Deleted
// artifacts are not resolvable.
func (s *Store) Get(ctx context.Context, ref string) (*types.MemoryArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ref, domain, category,
			loop_id, component, output_type, result, confidence, quality_score,
			citations, policy_tags, constitutional_compliance, requires_approval,
			diagnostics, warnings, errors, importance, expires_at, created_at,
			trust_score, decay_curve, half_life_hours, usage_score,
			access_count, success_count, failure_count,
			is_archived, is_deleted, stored_at, last_accessed_at
		FROM artifacts WHERE ref = ? AND is_deleted = 0`, ref)
	if err != nil {
		return nil, fmt.Errorf("querying artifact %s: %w", ref, err)
	}
	artifacts, err := scanArtifacts(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, &types.NotFoundError{Ref: ref}
	}
	return artifacts[0], nil
}

func scanArtifacts(rows *sql.Rows) ([]*types.MemoryArtifact, error) {
	var out []*types.MemoryArtifact
	for rows.Next() {
		var (
			a              types.MemoryArtifact
			outputType     string
			qualityScore   sql.NullFloat64
			citations      string
			policyTags     string
			compliance     int
			approval       int
			diagnostics    string
			warnings       string
			errsJSON       string
			expiresAt      sql.NullString
			createdAt      string
			decayCurve     string
			archived       int
			deleted        int
			storedAt       string
			lastAccessedAt sql.NullString
		)
		err := rows.Scan(&a.Ref, &a.Domain, &a.Category,
			&a.Output.LoopID, &a.Output.Component, &outputType, &a.Output.Result,
			&a.Output.Confidence, &qualityScore,
			&citations, &policyTags, &compliance, &approval,
			&diagnostics, &warnings, &errsJSON, &a.Output.Importance, &expiresAt, &createdAt,
			&a.TrustScore, &decayCurve, &a.HalfLifeHours, &a.UsageScore,
			&a.AccessCount, &a.SuccessCount, &a.FailureCount,
			&archived, &deleted, &storedAt, &lastAccessedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}

		a.Output.Type = types.OutputType(outputType)
		a.Output.ConstitutionalCompliance = compliance != 0
		a.Output.RequiresApproval = approval != 0
		a.DecayCurve = types.DecayCurve(decayCurve)
		a.IsArchived = archived != 0
		a.IsDeleted = deleted != 0
		if qualityScore.Valid {
			v := qualityScore.Float64
			a.Output.QualityScore = &v
		}
		if err := json.Unmarshal([]byte(citations), &a.Output.Citations); err != nil {
			return nil, fmt.Errorf("decoding citations for %s: %w", a.Ref, err)
		}
		if err := json.Unmarshal([]byte(policyTags), &a.Output.PolicyTags); err != nil {
			return nil, fmt.Errorf("decoding policy tags for %s: %w", a.Ref, err)
		}
		if err := json.Unmarshal([]byte(diagnostics), &a.Output.Diagnostics); err != nil {
			return nil, fmt.Errorf("decoding diagnostics for %s: %w", a.Ref, err)
		}
		if err := json.Unmarshal([]byte(warnings), &a.Output.Warnings); err != nil {
			return nil, fmt.Errorf("decoding warnings for %s: %w", a.Ref, err)
		}
		if err := json.Unmarshal([]byte(errsJSON), &a.Output.Errors); err != nil {
			return nil, fmt.Errorf("decoding errors for %s: %w", a.Ref, err)
		}
		if expiresAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, expiresAt.String); err == nil {
				a.Output.ExpiresAt = &ts
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			a.Output.CreatedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
			a.StoredAt = ts
		}
		if lastAccessedAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, lastAccessedAt.String); err == nil {
				a.LastAccessedAt = &ts
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
