package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter tracks and enforces hourly and daily request limits over sliding windows
type RateLimiter struct {
	requestsPerHour int
	requestsPerDay  int
	enabled         bool

	// Request tracking
	hourWindow []time.Time
	dayWindow  []time.Time
	lastSeen   time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given limits. A zero limit is unlimited.
func NewRateLimiter(requestsPerHour, requestsPerDay int, enabled bool) *RateLimiter {
	return &RateLimiter{
		requestsPerHour: requestsPerHour,
		requestsPerDay:  requestsPerDay,
		enabled:         enabled,
		hourWindow:      make([]time.Time, 0),
		dayWindow:       make([]time.Time, 0),
	}
}

// AllowRequest checks if a request is allowed based on rate limits
// Returns true if allowed, false if rate limit exceeded
func (rl *RateLimiter) AllowRequest() bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.lastSeen = now

	// Clean up old entries
	rl.cleanup(now)

	// Check limits
	if rl.requestsPerHour > 0 && len(rl.hourWindow) >= rl.requestsPerHour {
		return false
	}
	if rl.requestsPerDay > 0 && len(rl.dayWindow) >= rl.requestsPerDay {
		return false
	}

	// Record the request
	rl.hourWindow = append(rl.hourWindow, now)
	rl.dayWindow = append(rl.dayWindow, now)

	return true
}

// cleanup removes expired entries from the time windows
func (rl *RateLimiter) cleanup(now time.Time) {
	// Clean hour window (keep last 60 minutes)
	hourAgo := now.Add(-1 * time.Hour)
	rl.hourWindow = filterTimes(rl.hourWindow, hourAgo)

	// Clean day window (keep last 24 hours)
	dayAgo := now.Add(-24 * time.Hour)
	rl.dayWindow = filterTimes(rl.dayWindow, dayAgo)
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanup(time.Now())

	stats := Stats{
		Enabled:          true,
		RequestsLastHour: len(rl.hourWindow),
		RequestsLastDay:  len(rl.dayWindow),
		LimitPerHour:     rl.requestsPerHour,
		LimitPerDay:      rl.requestsPerDay,
	}
	if rl.requestsPerHour > 0 {
		stats.RemainingThisHour = max(0, rl.requestsPerHour-len(rl.hourWindow))
	}
	if rl.requestsPerDay > 0 {
		stats.RemainingThisDay = max(0, rl.requestsPerDay-len(rl.dayWindow))
	}
	return stats
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled           bool `json:"enabled"`
	RequestsLastHour  int  `json:"requestsLastHour"`
	RequestsLastDay   int  `json:"requestsLastDay"`
	LimitPerHour      int  `json:"limitPerHour"`
	LimitPerDay       int  `json:"limitPerDay"`
	RemainingThisHour int  `json:"remainingThisHour"`
	RemainingThisDay  int  `json:"remainingThisDay"`
}

// Refund forgets the most recent recorded request, for work that was admitted but never done
func (rl *RateLimiter) Refund() {
	if !rl.enabled {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if n := len(rl.hourWindow); n > 0 {
		rl.hourWindow = rl.hourWindow[:n-1]
	}
	if n := len(rl.dayWindow); n > 0 {
		rl.dayWindow = rl.dayWindow[:n-1]
	}
}

// Reset clears all tracked requests (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.hourWindow = make([]time.Time, 0)
	rl.dayWindow = make([]time.Time, 0)
}

func (rl *RateLimiter) idleSince(cutoff time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lastSeen.Before(cutoff)
}

// SubmissionQuota keeps a sliding-window limiter per user
type SubmissionQuota struct {
	perHour int
	perDay  int
	enabled bool

	users map[string]*RateLimiter
	mu    sync.Mutex
}

func NewSubmissionQuota(perHour, perDay int, enabled bool) *SubmissionQuota {
	return &SubmissionQuota{
		perHour: perHour,
		perDay:  perDay,
		enabled: enabled,
		users:   make(map[string]*RateLimiter),
	}
}

func (q *SubmissionQuota) limiter(userID string) *RateLimiter {
	q.mu.Lock()
	defer q.mu.Unlock()
	rl, ok := q.users[userID]
	if !ok {
		rl = NewRateLimiter(q.perHour, q.perDay, q.enabled)
		q.users[userID] = rl
	}
	return rl
}

// Allow records a submission attempt for userID and reports whether it is within quota
func (q *SubmissionQuota) Allow(userID string) bool {
	if !q.enabled {
		return true
	}
	return q.limiter(userID).AllowRequest()
}

// Refund returns the slot taken by Allow when the submission was not stored
func (q *SubmissionQuota) Refund(userID string) {
	if !q.enabled {
		return
	}
	q.limiter(userID).Refund()
}

// Stats returns the quota usage of one user
func (q *SubmissionQuota) Stats(userID string) Stats {
	return q.limiter(userID).GetStats()
}

// Prune drops users idle for a full day; their windows are empty by then
func (q *SubmissionQuota) Prune() int {
	cutoff := time.Now().Add(-24 * time.Hour)
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, rl := range q.users {
		if rl.idleSince(cutoff) {
			delete(q.users, id)
			removed++
		}
	}
	return removed
}
