package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// FetchLimiter paces outbound page fetches: a cap on concurrent requests plus
// a minimum delay (with jitter) between request starts.
type FetchLimiter struct {
	maxInFlight     int
	currentInFlight int
	mutex           sync.Mutex
	baseDelay       time.Duration
	jitter          time.Duration
	lastRequest     time.Time
}

// NewFetchLimiter creates a new limiter for outbound fetches
func NewFetchLimiter(maxInFlight int, baseDelay, jitter time.Duration) *FetchLimiter {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &FetchLimiter{
		maxInFlight: maxInFlight,
		baseDelay:   baseDelay,
		jitter:      jitter,
	}
}

// Acquire waits until it's safe to make a request or ctx is done
func (fl *FetchLimiter) Acquire(ctx context.Context) error {
	fl.mutex.Lock()

	// Wait for in-flight count to drop
	for fl.currentInFlight >= fl.maxInFlight {
		fl.mutex.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		fl.mutex.Lock()
	}

	// Apply pacing with jitter
	requiredDelay := fl.baseDelay
	if fl.jitter > 0 {
		requiredDelay += time.Duration(rand.Int63n(int64(fl.jitter)))
	}
	if wait := requiredDelay - time.Since(fl.lastRequest); wait > 0 {
		fl.mutex.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		fl.mutex.Lock()
	}

	fl.currentInFlight++
	fl.lastRequest = time.Now()
	fl.mutex.Unlock()
	return nil
}

// Release marks a request as completed
func (fl *FetchLimiter) Release() {
	fl.mutex.Lock()
	if fl.currentInFlight > 0 {
		fl.currentInFlight--
	}
	fl.mutex.Unlock()
}

// InFlight returns current in-flight request count
func (fl *FetchLimiter) InFlight() int {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()
	return fl.currentInFlight
}
