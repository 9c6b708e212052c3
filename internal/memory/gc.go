package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// gcCandidate is a pre-pass snapshot row. GC decisions use these snapshot
// values only, never scores mutated during the same pass.
type gcCandidate struct {
	ref       string
	trust     float64
	storedAt  time.Time
	expiresAt *time.Time

	archive bool
	remove  bool
}

// GarbageCollect archives and logically deletes low-trust or stale
// artifacts per policy. The per-artifact pass runs first; a max_artifacts
// cap then archives the lowest-trust excess of the pre-pass active set.
// Only flags move, never trust scores. A dry run reports counts without
// committing, and every invocation writes one audit row either way.
func (s *Store) GarbageCollect(ctx context.Context, policy types.GCPolicy) (*types.GCResult, error) {
	s.mu.Lock()
	res, err := s.collect(ctx, policy)
	s.mu.Unlock()

	if s.ledger != nil {
		payload := map[string]any{
			"dry_run":             policy.DryRun,
			"min_trust_threshold": policy.MinTrustThreshold,
			"delete_threshold":    policy.DeleteThreshold,
		}
		result := "ok"
		if err != nil {
			result = "error"
			payload["error"] = err.Error()
		} else {
			payload["scanned"] = res.Scanned
			payload["archived"] = res.Archived
			payload["deleted"] = res.Deleted
		}
		if auditErr := s.ledger.Append(ctx, types.AuditRecord{
			Actor:     "memory_store",
			Action:    "garbage_collect",
			Resource:  "artifacts",
			Subsystem: "memory",
			Payload:   payload,
			Result:    result,
		}); auditErr != nil && err == nil {
			return nil, &types.ExternalDependencyError{Dependency: "audit_ledger", Err: auditErr}
		}
	}
	return res, err
}

func (s *Store) collect(ctx context.Context, policy types.GCPolicy) (*types.GCResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning gc transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT ref, trust_score, stored_at, expires_at
		FROM artifacts
		WHERE is_archived = 0 AND is_deleted = 0
		ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("snapshotting active artifacts: %w", err)
	}
	var snapshot []*gcCandidate
	for rows.Next() {
		var (
			c         gcCandidate
			storedAt  string
			expiresAt sql.NullString
		)
		if err := rows.Scan(&c.ref, &c.trust, &storedAt, &expiresAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning gc candidate: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
			c.storedAt = ts
		}
		if expiresAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, expiresAt.String); err == nil {
				c.expiresAt = &ts
			}
		}
		snapshot = append(snapshot, &c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	res := &types.GCResult{Scanned: len(snapshot)}

	for _, c := range snapshot {
		ageHours := now.Sub(c.storedAt).Hours()
		shouldArchive := c.trust < policy.MinTrustThreshold ||
			(policy.MaxAgeHours != nil && ageHours > *policy.MaxAgeHours) ||
			(c.expiresAt != nil && now.After(*c.expiresAt))
		shouldDelete := c.trust < policy.DeleteThreshold

		switch {
		case shouldDelete:
			c.remove = true
			res.Deleted++
		case shouldArchive:
			c.archive = true
			res.Archived++
		}
	}

	// Cap the active population: archive the lowest-trust excess of the
	// pre-pass snapshot. Artifacts already leaving the active set this
	// pass count toward the reduction.
	if policy.MaxArtifacts != nil && len(snapshot) > *policy.MaxArtifacts {
		excess := len(snapshot) - *policy.MaxArtifacts
		byTrust := make([]*gcCandidate, len(snapshot))
		copy(byTrust, snapshot)
		sort.SliceStable(byTrust, func(i, j int) bool { return byTrust[i].trust < byTrust[j].trust })
		for _, c := range byTrust {
			if excess <= 0 {
				break
			}
			if c.remove || c.archive {
				excess--
				continue
			}
			c.archive = true
			res.Archived++
			excess--
		}
	}

	if policy.DryRun {
		logging.Memory("gc dry_run scanned=%d would_archive=%d would_delete=%d",
			res.Scanned, res.Archived, res.Deleted)
		return res, nil
	}

	for _, c := range snapshot {
		switch {
		case c.remove:
			if _, err := tx.ExecContext(ctx,
				`UPDATE artifacts SET is_deleted = 1 WHERE ref = ?`, c.ref); err != nil {
				return nil, fmt.Errorf("deleting %s: %w", c.ref, err)
			}
		case c.archive:
			if _, err := tx.ExecContext(ctx,
				`UPDATE artifacts SET is_archived = 1 WHERE ref = ?`, c.ref); err != nil {
				return nil, fmt.Errorf("archiving %s: %w", c.ref, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing gc pass: %w", err)
	}

	logging.Memory("gc scanned=%d archived=%d deleted=%d", res.Scanned, res.Archived, res.Deleted)
	return res, nil
}
