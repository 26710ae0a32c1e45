package cron

import (
	"sync"
	"time"

	"github.com/angelmondragon/neurocare-backend/pkg/metrics"
)

// Scheduler runs one-shot callbacks keyed by an identifier.
// At most one callback is outstanding per key.
type Scheduler interface {
	// ScheduleOnce arms fn to run after delay. It reports false when the key already has a
	// pending callback or the scheduler was stopped.
	ScheduleOnce(key string, delay time.Duration, fn func()) bool
	Cancel(key string) bool
	Pending(key string) bool
	Len() int
	// Stop cancels everything; later schedules are refused.
	Stop()
}

type timerEntry struct {
	timer *time.Timer
}

// TimerScheduler implements Scheduler with time.AfterFunc.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[string]*timerEntry
	stopped bool
	metrics *metrics.OrderMetrics
}

// NewTimerScheduler builds a scheduler; m may be nil.
func NewTimerScheduler(m *metrics.OrderMetrics) *TimerScheduler {
	return &TimerScheduler{
		timers:  make(map[string]*timerEntry),
		metrics: m,
	}
}

func (s *TimerScheduler) ScheduleOnce(key string, delay time.Duration, fn func()) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if _, exists := s.timers[key]; exists {
		return false
	}
	if delay < 0 {
		delay = 0
	}
	entry := &timerEntry{}
	entry.timer = time.AfterFunc(delay, func() { s.fire(key, entry, fn) })
	s.timers[key] = entry
	s.metrics.AddPending(1)
	return true
}

func (s *TimerScheduler) fire(key string, entry *timerEntry, fn func()) {
	s.mu.Lock()
	current, ok := s.timers[key]
	if !ok || current != entry {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.mu.Unlock()
	s.metrics.AddPending(-1)
	fn()
}

func (s *TimerScheduler) Cancel(key string) bool {
	s.mu.Lock()
	entry, ok := s.timers[key]
	if ok {
		entry.timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	if ok {
		s.metrics.AddPending(-1)
	}
	return ok
}

func (s *TimerScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

func (s *TimerScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	n := len(s.timers)
	for key, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	s.metrics.AddPending(-float64(n))
}
