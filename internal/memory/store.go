// Package memory persists approved outputs as trust-scored artifacts in
// sqlite. Artifacts are written once; UpdateTrust mutates score and usage
// counters under a transaction, GarbageCollect flips archive/delete flags,
// and nothing is ever deleted physically.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cortex/internal/logging"
	"cortex/internal/trust"
	"cortex/internal/types"
)

// Store is the artifact store. All mutation goes through one mutex on top
// of sqlite's own transactional guarantees, matching single-writer WAL use.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	reputation types.ReputationSource
	relevance  types.RelevanceFunc
	ledger     types.AuditLedger
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithReputation wires a reputation source for write-time provenance.
func WithReputation(r types.ReputationSource) Option {
	return func(s *Store) { s.reputation = r }
}

// WithRelevance injects a relevance hook used during Read ranking.
func WithRelevance(f types.RelevanceFunc) Option {
	return func(s *Store) { s.relevance = f }
}

// WithAuditLedger wires the ledger that records garbage collection passes.
func WithAuditLedger(l types.AuditLedger) Option {
	return func(s *Store) { s.ledger = l }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the store at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.MemoryDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.MemoryDebug("failed to set journal_mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.MemoryDebug("failed to set synchronous: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating artifact schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Store persists an output as a new artifact. With governanceCheck on, a
// non-compliant output is rejected before anything touches the database.
// The artifact row, its initial trust event, and its secondary indexes are
// written in one transaction.
func (s *Store) Store(ctx context.Context, o *types.Output, domain, category string, governanceCheck bool) (*types.MemoryRef, error) {
	if o == nil {
		return nil, &types.ValidationError{Field: "output", Reason: "nil output"}
	}
	if governanceCheck && !o.ConstitutionalCompliance {
		return nil, &types.ValidationError{
			Field:  "constitutional_compliance",
			Reason: "output is not constitutionally compliant",
		}
	}
	if domain == "" {
		return nil, &types.ValidationError{Field: "domain", Reason: "domain is required"}
	}
	if !o.Type.Valid() {
		return nil, &types.ValidationError{Field: "output_type", Reason: fmt.Sprintf("unknown output type %q", o.Type)}
	}

	signals := trust.ScoreOnWrite(o, s.reputation)
	curve, halfLife := trust.RecommendDecayCurve(o.Type)
	ref := "mem:" + uuid.NewString()
	now := s.now().UTC()

	citations, err := json.Marshal(orEmptyCitations(o.Citations))
	if err != nil {
		return nil, fmt.Errorf("encoding citations: %w", err)
	}
	tags, err := json.Marshal(orEmptyTags(o.PolicyTags))
	if err != nil {
		return nil, fmt.Errorf("encoding policy tags: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning store transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts (
			ref, domain, category,
			loop_id, component, output_type, result, confidence, quality_score,
			citations, policy_tags, constitutional_compliance, requires_approval,
			diagnostics, warnings, errors, importance, expires_at, created_at,
			trust_score, decay_curve, half_life_hours, usage_score, stored_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ref, domain, category,
		o.LoopID, o.Component, string(o.Type), o.Result, o.Confidence, nullFloat(o.QualityScore),
		string(citations), string(tags), boolInt(o.ConstitutionalCompliance), boolInt(o.RequiresApproval),
		jsonStrings(o.Diagnostics), jsonStrings(o.Warnings), jsonStrings(o.Errors),
		o.Importance, nullTime(o.ExpiresAt), createdAt.Format(time.RFC3339Nano),
		signals.Total, string(curve), halfLife, signals.Usage, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("inserting artifact: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trust_events (ref, trust_before, trust_after, reason, outcome, actor, created_at)
		VALUES (?, 0, ?, 'initial_score', '', ?, ?)`,
		ref, signals.Total, o.Component, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("inserting initial trust event: %w", err)
	}

	type idx struct {
		key, value string
		weight     float64
	}
	indexes := []idx{
		{"component", o.Component, indexWeightComponent},
		{"output_type", string(o.Type), indexWeightOutputType},
		{"loop_id", o.LoopID, indexWeightLoop},
	}
	for _, tag := range o.PolicyTags {
		indexes = append(indexes, idx{"policy_tag", tag.Name, indexWeightPolicyTag})
	}
	for _, in := range indexes {
		if in.value == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifact_index (ref, idx_key, idx_value, weight) VALUES (?,?,?,?)`,
			ref, in.key, in.value, in.weight); err != nil {
			return nil, fmt.Errorf("inserting %s index: %w", in.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing artifact: %w", err)
	}

	logging.Memory("stored %s domain=%s component=%s type=%s trust=%.3f curve=%s",
		ref, domain, o.Component, o.Type, signals.Total, curve)
	return &types.MemoryRef{Ref: ref, Domain: domain}, nil
}

// UpdateTrust records one usage of an artifact: counters always move, and
// the trust score is recomputed from the read model unless an explicit
// delta bypasses it. The read-modify-write runs in one transaction so two
// concurrent updates never clobber each other's counters.
func (s *Store) UpdateTrust(ctx context.Context, ref string, delta *float64, reason string, outcome types.Outcome, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning trust update: %w", err)
	}
	defer tx.Rollback()

	var (
		trustScore           float64
		access, succ, failed int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT trust_score, access_count, success_count, failure_count
		FROM artifacts WHERE ref = ? AND is_deleted = 0`, ref).
		Scan(&trustScore, &access, &succ, &failed)
	if err == sql.ErrNoRows {
		return &types.NotFoundError{Ref: ref}
	}
	if err != nil {
		return fmt.Errorf("reading artifact %s: %w", ref, err)
	}

	var updated float64
	if delta != nil {
		updated = trust.Clamp(trustScore + *delta)
	} else {
		// Pre-update counters: the increment sizes depend on history so
		// far, not on the usage being recorded now.
		updated = trust.ScoreOnRead(trustScore, access, succ, failed, outcome)
	}

	access++
	switch outcome {
	case types.OutcomeSuccess:
		succ++
	case types.OutcomeFailure:
		failed++
	}
	usage := trust.UpdateUsageSignal(access, succ)
	now := s.now().UTC().Format(time.RFC3339Nano)

	_, err = tx.ExecContext(ctx, `
		UPDATE artifacts SET
			trust_score = ?, usage_score = ?,
			access_count = ?, success_count = ?, failure_count = ?,
			last_accessed_at = ?
		WHERE ref = ?`,
		updated, usage, access, succ, failed, now, ref)
	if err != nil {
		return fmt.Errorf("updating artifact %s: %w", ref, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trust_events (ref, trust_before, trust_after, reason, outcome, actor, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		ref, trustScore, updated, reason, string(outcome), actor, now)
	if err != nil {
		return fmt.Errorf("appending trust event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trust update: %w", err)
	}
	logging.MemoryDebug("trust %s %.3f -> %.3f outcome=%s reason=%s", ref, trustScore, updated, outcome, reason)
	return nil
}

// History returns an artifact's trust events, oldest first.
func (s *Store) History(ctx context.Context, ref string) ([]types.TrustEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE ref = ?`, ref).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, &types.NotFoundError{Ref: ref}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ref, trust_before, trust_after, reason, outcome, actor, created_at
		FROM trust_events WHERE ref = ? ORDER BY id ASC`, ref)
	if err != nil {
		return nil, fmt.Errorf("reading trust history: %w", err)
	}
	defer rows.Close()

	var out []types.TrustEvent
	for rows.Next() {
		var (
			ev        types.TrustEvent
			outcome   string
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.Ref, &ev.TrustBefore, &ev.TrustAfter,
			&ev.Reason, &outcome, &ev.Actor, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning trust event: %w", err)
		}
		ev.Outcome = types.Outcome(outcome)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			ev.CreatedAt = ts
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// StoreStats summarizes the artifact population.
type StoreStats struct {
	Active     int     `json:"active"`
	Archived   int     `json:"archived"`
	Deleted    int     `json:"deleted"`
	MeanTrust  float64 `json:"mean_trust"`
	TotalReads int     `json:"total_reads"`
}

// Stats reports population counts and the mean stored trust of active rows.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &StoreStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN is_deleted = 0 AND is_archived = 0 THEN 1 END),
			COUNT(CASE WHEN is_deleted = 0 AND is_archived = 1 THEN 1 END),
			COUNT(CASE WHEN is_deleted = 1 THEN 1 END),
			COALESCE(AVG(CASE WHEN is_deleted = 0 AND is_archived = 0 THEN trust_score END), 0),
			COALESCE(SUM(access_count), 0)
		FROM artifacts`).
		Scan(&st.Active, &st.Archived, &st.Deleted, &st.MeanTrust, &st.TotalReads)
	if err != nil {
		return nil, fmt.Errorf("reading store stats: %w", err)
	}
	return st, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func jsonStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func orEmptyCitations(cs []types.Citation) []types.Citation {
	if cs == nil {
		return []types.Citation{}
	}
	return cs
}

func orEmptyTags(ts []types.PolicyTag) []types.PolicyTag {
	if ts == nil {
		return []types.PolicyTag{}
	}
	return ts
}
