package consensus

import (
	"sync"
)

// TrackRecordCapacity bounds each specialist's rolling observation window.
const TrackRecordCapacity = 100

// emaAlpha is the smoothing factor of the specialist trust EMA.
const emaAlpha = 0.1

// initialTrust is assumed for specialists with no recorded history.
const initialTrust = 0.5

// TrustTable holds per-specialist trust and rolling track records. It is an
// injected value, not a package singleton: construct one per engine (or
// share one deliberately) and every update is serialized behind its lock.
// Reads return point-in-time values and tolerate staleness.
type TrustTable struct {
	mu      sync.RWMutex
	trust   map[string]float64
	records map[string]*trackRecord
}

// NewTrustTable creates an empty table.
func NewTrustTable() *TrustTable {
	return &TrustTable{
		trust:   make(map[string]float64),
		records: make(map[string]*trackRecord),
	}
}

// Update applies one observed outcome for a specialist: an EMA step on
// trust and an append to the rolling track record.
func (t *TrustTable) Update(specialist string, success bool) {
	observation := 0.0
	if success {
		observation = 1.0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.trust[specialist]
	if !ok {
		prev = initialTrust
	}
	t.trust[specialist] = emaAlpha*observation + (1-emaAlpha)*prev

	rec, ok := t.records[specialist]
	if !ok {
		rec = newTrackRecord(TrackRecordCapacity)
		t.records[specialist] = rec
	}
	rec.Push(observation)
}

// Trust returns the specialist's current trust, initialTrust when unseen.
func (t *TrustTable) Trust(specialist string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v, ok := t.trust[specialist]; ok {
		return v
	}
	return initialTrust
}

// TrackRecord returns the mean of the rolling observation window,
// 0.5 for an unseen specialist.
func (t *TrustTable) TrackRecord(specialist string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rec, ok := t.records[specialist]; ok {
		return rec.Mean()
	}
	return 0.5
}

// Specialists lists every specialist with recorded state.
func (t *TrustTable) Specialists() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.trust))
	for name := range t.trust {
		out = append(out, name)
	}
	return out
}
