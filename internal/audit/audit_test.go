package audit

import (
	"context"
	"path/filepath"
	"testing"

	"cortex/internal/types"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	for i, action := range []string{"stored", "blocked", "archived"} {
		err := l.Append(ctx, types.AuditRecord{
			Actor:     "integrator",
			Action:    action,
			Resource:  "mem:abc",
			Subsystem: "memory",
			Result:    "ok",
			Payload:   map[string]any{"seq": i},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	entries, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Newest first.
	if entries[0].Record.Action != "archived" {
		t.Fatalf("first entry = %s, want archived", entries[0].Record.Action)
	}
	if entries[0].ID <= entries[1].ID {
		t.Fatal("ids must be descending in Recent")
	}
	if entries[0].RecordedAt.IsZero() {
		t.Fatal("recorded_at not round-tripped")
	}
}

func TestForResourceOrdersOldestFirst(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	for _, action := range []string{"validated", "stored", "trust_updated"} {
		if err := l.Append(ctx, types.AuditRecord{
			Actor: "gate", Action: action, Resource: "mem:xyz", Subsystem: "gate", Result: "ok",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Append(ctx, types.AuditRecord{
		Actor: "gate", Action: "validated", Resource: "mem:other", Subsystem: "gate", Result: "ok",
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := l.ForResource(ctx, "mem:xyz")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	want := []string{"validated", "stored", "trust_updated"}
	for i, e := range entries {
		if e.Record.Action != want[i] {
			t.Fatalf("entry %d = %s, want %s", i, e.Record.Action, want[i])
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()

	err := l.Append(ctx, types.AuditRecord{
		Actor: "integrator", Action: "stored", Resource: "mem:p", Subsystem: "memory", Result: "ok",
		Payload: map[string]any{"trust": 0.82, "decision": "GO"},
	})
	if err != nil {
		t.Fatal(err)
	}
	entries, err := l.ForResource(ctx, "mem:p")
	if err != nil {
		t.Fatal(err)
	}
	if got := entries[0].Record.Payload["decision"]; got != "GO" {
		t.Fatalf("payload decision = %v, want GO", got)
	}
	if got := entries[0].Record.Payload["trust"]; got != 0.82 {
		t.Fatalf("payload trust = %v, want 0.82", got)
	}
}

func TestCount(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	n, err := l.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("empty count = %d, %v", n, err)
	}
	if err := l.Append(ctx, types.AuditRecord{Actor: "a", Action: "b", Resource: "c", Subsystem: "d", Result: "ok"}); err != nil {
		t.Fatal(err)
	}
	n, err = l.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
}
