package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterStore holds one token bucket per client key, bounded in size.
type LimiterStore struct {
	mu       sync.Mutex
	limiters map[uint64]*timestampedLimiter
	maxSize  int
	rate     int
	now      func() time.Time
}

type timestampedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore creates a new limiter store
func NewLimiterStore(maxSize, rateLimit int, now func() time.Time) *LimiterStore {
	if now == nil {
		now = time.Now
	}

	return &LimiterStore{
		limiters: make(map[uint64]*timestampedLimiter),
		maxSize:  maxSize,
		rate:     rateLimit,
		now:      now,
	}
}

// Allow reports whether the client behind key may send one more query.
func (s *LimiterStore) Allow(key uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	tl, ok := s.limiters[key]
	if !ok {
		if len(s.limiters) >= s.maxSize {
			s.evictOne()
		}

		limit := rate.Limit(0)
		if s.rate > 0 {
			limit = rate.Every(time.Minute / time.Duration(s.rate))
		}

		tl = &timestampedLimiter{limiter: rate.NewLimiter(limit, s.rate)}
		s.limiters[key] = tl
	}

	tl.lastSeen = now

	return tl.limiter.AllowN(now, 1)
}

// evictOne removes the least recently seen entry.
func (s *LimiterStore) evictOne() {
	var oldestKey uint64
	var oldestTime time.Time
	first := true

	for k, v := range s.limiters {
		if first || v.lastSeen.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.lastSeen
			first = false
		}
	}

	if !first {
		delete(s.limiters, oldestKey)
	}
}

// Cleanup removes entries not seen for olderThan.
func (s *LimiterStore) Cleanup(olderThan time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	for k, v := range s.limiters {
		if v.lastSeen.Before(cutoff) {
			delete(s.limiters, k)
		}
	}
}

// Len returns the number of limiters
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
