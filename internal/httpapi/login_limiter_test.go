package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testLimiterIP = "203.0.113.7"

func newTestLoginLimiter(currentTime *time.Time) *loginLimiter {
	limiter := newLoginLimiter()
	limiter.now = func() time.Time { return *currentTime }
	return limiter
}

func TestLoginLimiterAllowsUnknownIP(t *testing.T) {
	currentTime := time.Now().UTC()
	limiter := newTestLoginLimiter(&currentTime)

	allowed, retryAfter := limiter.Allow(testLimiterIP)
	require.True(t, allowed)
	require.Zero(t, retryAfter)
}

func TestLoginLimiterLocksAfterMaxFailures(t *testing.T) {
	currentTime := time.Now().UTC()
	limiter := newTestLoginLimiter(&currentTime)

	for attempt := 0; attempt < maxFailedLoginAttempts; attempt++ {
		allowed, _ := limiter.Allow(testLimiterIP)
		require.True(t, allowed)
		limiter.RecordFailure(testLimiterIP)
	}

	allowed, retryAfter := limiter.Allow(testLimiterIP)
	require.False(t, allowed)
	require.Equal(t, loginLockoutDuration, retryAfter)
}

func TestLoginLimiterLockoutExpires(t *testing.T) {
	currentTime := time.Now().UTC()
	limiter := newTestLoginLimiter(&currentTime)

	for attempt := 0; attempt < maxFailedLoginAttempts; attempt++ {
		limiter.RecordFailure(testLimiterIP)
	}
	allowed, _ := limiter.Allow(testLimiterIP)
	require.False(t, allowed)

	currentTime = currentTime.Add(loginLockoutDuration + loginAttemptWindow + time.Second)
	allowed, retryAfter := limiter.Allow(testLimiterIP)
	require.True(t, allowed)
	require.Zero(t, retryAfter)
}

func TestLoginLimiterOldFailuresFallOutOfWindow(t *testing.T) {
	currentTime := time.Now().UTC()
	limiter := newTestLoginLimiter(&currentTime)

	for attempt := 0; attempt < maxFailedLoginAttempts-1; attempt++ {
		limiter.RecordFailure(testLimiterIP)
	}

	currentTime = currentTime.Add(loginAttemptWindow + time.Second)
	limiter.RecordFailure(testLimiterIP)

	allowed, _ := limiter.Allow(testLimiterIP)
	require.True(t, allowed)
}

func TestLoginLimiterSuccessClearsFailures(t *testing.T) {
	currentTime := time.Now().UTC()
	limiter := newTestLoginLimiter(&currentTime)

	for attempt := 0; attempt < maxFailedLoginAttempts; attempt++ {
		limiter.RecordFailure(testLimiterIP)
	}
	limiter.RecordSuccess(testLimiterIP)

	allowed, _ := limiter.Allow(testLimiterIP)
	require.True(t, allowed)
}
