package observability

import (
	"sync"
	"time"
)

// Tracker records query lifecycle events in-process. It is safe for
// concurrent use and has no effect on pipeline behavior; consumers read
// a Snapshot after the fact.
type Tracker struct {
	mu sync.Mutex

	queriesStarted int
	queriesByState map[string]int
	toolDurations  map[string]time.Duration
	toolCalls      map[string]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		queriesByState: make(map[string]int),
		toolDurations:  make(map[string]time.Duration),
		toolCalls:      make(map[string]int),
	}
}

// StartQuery records the start of a question and returns a function to
// record its terminal status.
func (t *Tracker) StartQuery() func(status string) {
	t.mu.Lock()
	t.queriesStarted++
	t.mu.Unlock()

	return func(status string) {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.queriesByState[status]++
	}
}

// ToolSpan records the start of a tool invocation (search, fetch,
// synthesize) and returns a function to close the span.
func (t *Tracker) ToolSpan(name string) func() {
	start := time.Now()
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.toolCalls[name]++
		t.toolDurations[name] += time.Since(start)
	}
}

// Snapshot is a point-in-time copy of the tracked counters.
type Snapshot struct {
	QueriesStarted int
	QueriesByState map[string]int
	ToolCalls      map[string]int
	ToolDurations  map[string]time.Duration
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		QueriesStarted: t.queriesStarted,
		QueriesByState: make(map[string]int, len(t.queriesByState)),
		ToolCalls:      make(map[string]int, len(t.toolCalls)),
		ToolDurations:  make(map[string]time.Duration, len(t.toolDurations)),
	}
	for k, v := range t.queriesByState {
		s.QueriesByState[k] = v
	}
	for k, v := range t.toolCalls {
		s.ToolCalls[k] = v
	}
	for k, v := range t.toolDurations {
		s.ToolDurations[k] = v
	}
	return s
}
