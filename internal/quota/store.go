// Package quota implements the request budget against the upstream trends
// provider: a fixed window of permitted requests, an admission decision with
// a human-like pacing delay, and a rejection that carries the wait time.
package quota

import (
	"context"
	"sync"
	"time"
)

// Usage is a read-only snapshot of the quota window.
type Usage struct {
	Used     int           `json:"requests_consumed"`
	Capacity int           `json:"capacity"`
	ResetIn  time.Duration `json:"-"`
}

// Remaining returns the number of requests still available in this window.
func (u Usage) Remaining() int {
	r := u.Capacity - u.Used
	if r < 0 {
		return 0
	}
	return r
}

// Store tracks consumption of the quota window. Implementations must make
// Consume an atomic check-then-increment: a race there would let admitted
// requests exceed capacity.
type Store interface {
	// Consume attempts to take one slot from the current window. It returns
	// the consumed count, whether the request was admitted, and on rejection
	// the time until the window resets.
	Consume(ctx context.Context) (used int, allowed bool, retryAfter time.Duration, err error)

	// Usage reports current consumption without mutating the window.
	Usage(ctx context.Context) (Usage, error)
}

// memoryStore is the process-local window. State lives for the process
// lifetime; nothing persists across restarts.
type memoryStore struct {
	mu          sync.Mutex
	capacity    int
	window      time.Duration
	used        int
	windowStart time.Time

	now func() time.Time
}

// NewMemoryStore creates an in-memory quota window store.
func NewMemoryStore(capacity int, window time.Duration) Store {
	return &memoryStore{
		capacity:    capacity,
		window:      window,
		windowStart: time.Now(),
		now:         time.Now,
	}
}

func (s *memoryStore) Consume(ctx context.Context) (int, bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.resetIfElapsed(now)

	if s.used >= s.capacity {
		retryAfter := s.window - now.Sub(s.windowStart)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return s.used, false, retryAfter, nil
	}

	s.used++
	return s.used, true, 0, nil
}

func (s *memoryStore) Usage(ctx context.Context) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.resetIfElapsed(now)

	resetIn := s.window - now.Sub(s.windowStart)
	if resetIn < 0 {
		resetIn = 0
	}

	return Usage{
		Used:     s.used,
		Capacity: s.capacity,
		ResetIn:  resetIn,
	}, nil
}

// resetIfElapsed starts a fresh window once the current one has run out.
// Callers must hold the mutex.
func (s *memoryStore) resetIfElapsed(now time.Time) {
	if now.Sub(s.windowStart) > s.window {
		s.used = 0
		s.windowStart = now
	}
}
