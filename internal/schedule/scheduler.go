// Package schedule provides the timer abstraction used by the bulk
// queue and background sweepers, so tests can drive time manually.
package schedule

import (
	"sync"
	"time"
)

// Scheduler runs a named function after a delay. Scheduling the same
// name again before it fires replaces the earlier timer.
type Scheduler interface {
	After(d time.Duration, name string, fn func())
	Cancel(name string)
	Stop()
}

// TimerScheduler is the production implementation on time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTimerScheduler creates an empty scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string]*time.Timer)}
}

// After schedules fn to run once after d, replacing any pending timer
// with the same name.
func (s *TimerScheduler) After(d time.Duration, name string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timers == nil {
		return
	}
	if prev, ok := s.timers[name]; ok {
		prev.Stop()
	}
	s.timers[name] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, name)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending timer by name. Unknown names are ignored.
func (s *TimerScheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop cancels all pending timers and rejects further scheduling.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	s.timers = nil
}
