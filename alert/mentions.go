package alert

import (
	"sync"
	"time"
)

// mentionTracker counts how many times a ticker has been alerted on today,
// feeding the "mention cap" filter spec §3 names but does not define the
// mechanics of (SPEC_FULL supplement #3). Day boundaries are America/New
// York wall-clock days, matching the session calculator.
type mentionTracker struct {
	mu      sync.Mutex
	day     string
	counts  map[string]int
	newYork *time.Location
}

func newMentionTracker(loc *time.Location) *mentionTracker {
	return &mentionTracker{counts: make(map[string]int), newYork: loc}
}

// Record increments and returns ticker's mention count for the current
// trading day, resetting all counts when the day rolls over.
func (m *mentionTracker) Record(ticker string, at time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := at.In(m.newYork).Format("2006-01-02")
	if day != m.day {
		m.day = day
		m.counts = make(map[string]int)
	}
	m.counts[ticker]++
	return m.counts[ticker]
}
