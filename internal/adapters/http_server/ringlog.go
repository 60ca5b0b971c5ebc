package httpserver

import "sync"

// RingLog keeps the last N operator-facing progress lines in memory
// for the /v1/log endpoint. Oldest lines fall off.
type RingLog struct {
	mu    sync.Mutex
	lines []string
	cap   int
}

func NewRingLog(capacity int) *RingLog {
	if capacity <= 0 {
		capacity = 500
	}
	return &RingLog{cap: capacity}
}

func (r *RingLog) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.cap {
		r.lines = r.lines[len(r.lines)-r.cap:]
	}
}

// Lines returns a copy, newest last.
func (r *RingLog) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
