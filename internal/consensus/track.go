package consensus

// trackRecord is a fixed-capacity ring of success/failure observations.
// Push evicts the oldest observation in O(1).
type trackRecord struct {
	buf   []float64
	head  int
	count int
}

func newTrackRecord(capacity int) *trackRecord {
	if capacity <= 0 {
		capacity = 1
	}
	return &trackRecord{buf: make([]float64, capacity)}
}

func (t *trackRecord) Push(v float64) {
	t.buf[t.head] = v
	t.head = (t.head + 1) % len(t.buf)
	if t.count < len(t.buf) {
		t.count++
	}
}

// Mean averages the recorded observations; 0.5 when there are none.
func (t *trackRecord) Mean() float64 {
	if t.count == 0 {
		return 0.5
	}
	var sum float64
	start := t.head - t.count
	if start < 0 {
		start += len(t.buf)
	}
	for i := 0; i < t.count; i++ {
		sum += t.buf[(start+i)%len(t.buf)]
	}
	return sum / float64(t.count)
}

func (t *trackRecord) Len() int { return t.count }
