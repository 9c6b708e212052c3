// Package audit provides an append-only sqlite ledger. Every governance
// decision and every memory integration writes exactly one row; rows are
// never updated or deleted, so the autoincrement id is a total order over
// everything the pipeline did.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"cortex/internal/logging"
	"cortex/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at TEXT NOT NULL,
	actor      TEXT NOT NULL,
	action     TEXT NOT NULL,
	resource   TEXT NOT NULL,
	subsystem  TEXT NOT NULL,
	result     TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_log(resource);
CREATE INDEX IF NOT EXISTS idx_audit_subsystem ON audit_log(subsystem);
`

// Ledger is an append-only audit trail backed by sqlite.
type Ledger struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the ledger at path. ":memory:" works for tests.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit ledger: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.Get(logging.CategoryAudit).Debugf("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.Get(logging.CategoryAudit).Debugf("failed to set journal_mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.Get(logging.CategoryAudit).Debugf("failed to set synchronous: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Append writes one record. The payload is stored as JSON.
func (l *Ledger) Append(ctx context.Context, rec types.AuditRecord) error {
	payload := []byte("{}")
	if rec.Payload != nil {
		b, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("encoding audit payload: %w", err)
		}
		payload = b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (recorded_at, actor, action, resource, subsystem, result, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		rec.Actor, rec.Action, rec.Resource, rec.Subsystem, rec.Result, string(payload))
	if err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	return nil
}

// Entry is one stored audit row.
type Entry struct {
	ID         int64             `json:"id"`
	RecordedAt time.Time         `json:"recorded_at"`
	Record     types.AuditRecord `json:"record"`
}

// Recent returns the latest n entries, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, recorded_at, actor, action, resource, subsystem, result, payload
		 FROM audit_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ForResource returns every entry touching a resource, oldest first.
func (l *Ledger) ForResource(ctx context.Context, resource string) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, recorded_at, actor, action, resource, subsystem, result, payload
		 FROM audit_log WHERE resource = ? ORDER BY id ASC`, resource)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Count reports the total number of entries.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n)
	return n, err
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			recordedAt string
			payload    string
		)
		if err := rows.Scan(&e.ID, &recordedAt, &e.Record.Actor, &e.Record.Action,
			&e.Record.Resource, &e.Record.Subsystem, &e.Record.Result, &payload); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			e.RecordedAt = ts
		}
		if payload != "" && payload != "{}" {
			if err := json.Unmarshal([]byte(payload), &e.Record.Payload); err != nil {
				return nil, fmt.Errorf("decoding audit payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}
