package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_HourlyLimit(t *testing.T) {
	rl := NewRateLimiter(2, 10, true)

	assert.True(t, rl.AllowRequest())
	assert.True(t, rl.AllowRequest())
	assert.False(t, rl.AllowRequest())

	stats := rl.GetStats()
	assert.Equal(t, 2, stats.RequestsLastHour)
	assert.Equal(t, 0, stats.RemainingThisHour)
	assert.Equal(t, 8, stats.RemainingThisDay)

	rl.Reset()
	assert.True(t, rl.AllowRequest())
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.AllowRequest())
	}
	assert.False(t, rl.GetStats().Enabled)
}

func TestSubmissionQuota_PerUser(t *testing.T) {
	q := NewSubmissionQuota(1, 5, true)

	assert.True(t, q.Allow("u1"))
	assert.False(t, q.Allow("u1"))
	assert.True(t, q.Allow("u2"), "quota is tracked per user")

	assert.Equal(t, 1, q.Stats("u1").RequestsLastHour)
	assert.Equal(t, 0, q.Prune(), "recently active users are kept")
}

func TestSubmissionQuota_Refund(t *testing.T) {
	q := NewSubmissionQuota(1, 5, true)

	require.True(t, q.Allow("u1"))
	q.Refund("u1")
	assert.Equal(t, 0, q.Stats("u1").RequestsLastDay)
	assert.True(t, q.Allow("u1"), "a refunded slot can be used again")
	assert.False(t, q.Allow("u1"))

	q.Refund("nobody")
	assert.Equal(t, 0, q.Stats("nobody").RequestsLastHour)
}

func TestSubmissionQuota_Disabled(t *testing.T) {
	q := NewSubmissionQuota(1, 1, false)
	assert.True(t, q.Allow("u1"))
	assert.True(t, q.Allow("u1"))
}

func TestClientLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cl := NewClientLimiter(0.001, 2)

	r := gin.New()
	r.POST("/auth/signin", cl.Limit(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own bucket")
}

func TestFetchLimiter_AcquireRelease(t *testing.T) {
	fl := NewFetchLimiter(1, 0, 0)
	ctx := context.Background()

	require.NoError(t, fl.Acquire(ctx))
	assert.Equal(t, 1, fl.InFlight())

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, fl.Acquire(waitCtx), context.DeadlineExceeded)

	fl.Release()
	assert.Equal(t, 0, fl.InFlight())
	require.NoError(t, fl.Acquire(ctx))
	fl.Release()
}
