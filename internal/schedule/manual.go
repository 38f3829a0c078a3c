package schedule

import (
	"sync"
	"time"
)

// ManualScheduler queues callbacks without real timers. Tests call
// Fire or FireAll to run them deterministically.
type ManualScheduler struct {
	mu      sync.Mutex
	pending map[string]manualEntry
}

type manualEntry struct {
	delay time.Duration
	fn    func()
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[string]manualEntry)}
}

// After records the callback; nothing runs until Fire.
func (s *ManualScheduler) After(d time.Duration, name string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return
	}
	s.pending[name] = manualEntry{delay: d, fn: fn}
}

// Cancel drops a pending callback.
func (s *ManualScheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, name)
}

// Stop drops everything and rejects further scheduling.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// Fire runs and removes the named callback, reporting whether one was
// pending.
func (s *ManualScheduler) Fire(name string) bool {
	s.mu.Lock()
	entry, ok := s.pending[name]
	delete(s.pending, name)
	s.mu.Unlock()
	if !ok {
		return false
	}
	entry.fn()
	return true
}

// FireAll runs every pending callback once and returns how many ran.
// Callbacks scheduled during FireAll wait for the next call.
func (s *ManualScheduler) FireAll() int {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]manualEntry)
	s.mu.Unlock()
	for _, entry := range batch {
		entry.fn()
	}
	return len(batch)
}

// Delay returns the recorded delay for a pending callback.
func (s *ManualScheduler) Delay(name string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[name]
	return entry.delay, ok
}
