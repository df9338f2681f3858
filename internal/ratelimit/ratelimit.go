package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrQuotaExceeded = errors.New("quota exceeded")

// Quota caps how many hosted summarization requests each provider may make per
// window (a day by default). A zero limit means unlimited.
type Quota struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	used      map[string]int
	resetTime time.Time
	now       func() time.Time
}

// NewQuota creates a quota of limit requests per provider per 24h.
func NewQuota(limit int) *Quota {
	return NewQuotaWithClock(limit, 24*time.Hour, time.Now)
}

func NewQuotaWithClock(limit int, window time.Duration, now func() time.Time) *Quota {
	return &Quota{
		limit:     limit,
		window:    window,
		used:      make(map[string]int),
		resetTime: now().Add(window),
		now:       now,
	}
}

// Take reserves one request for provider or returns ErrQuotaExceeded.
func (q *Quota) Take(provider string) error {
	if q == nil || q.limit <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.checkReset()

	if q.used[provider] >= q.limit {
		return fmt.Errorf("%s: %d/%d requests used: %w", provider, q.used[provider], q.limit, ErrQuotaExceeded)
	}
	q.used[provider]++
	return nil
}

// Used reports how many requests provider made in the current window.
func (q *Quota) Used(provider string) int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.checkReset()
	return q.used[provider]
}

func (q *Quota) GetStats() map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	used := make(map[string]int, len(q.used))
	for k, v := range q.used {
		used[k] = v
	}
	return map[string]interface{}{
		"limit":      q.limit,
		"used":       used,
		"reset_time": q.resetTime,
	}
}

// checkReset clears counters once the window has passed. Caller holds mu.
func (q *Quota) checkReset() {
	now := q.now()
	if now.After(q.resetTime) {
		q.used = make(map[string]int)
		q.resetTime = now.Add(q.window)
	}
}
