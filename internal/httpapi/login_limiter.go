package httpapi

import (
	"sync"
	"time"
)

const (
	loginAttemptWindow     = 10 * time.Minute
	loginLockoutDuration   = 10 * time.Minute
	maxFailedLoginAttempts = 5
)

type loginAttemptState struct {
	failures  []time.Time
	lockUntil time.Time
}

// loginLimiter throttles admin login attempts per client IP: after
// maxFailedLoginAttempts failures inside the window the IP is locked out for
// loginLockoutDuration. Successful logins reset the counter.
type loginLimiter struct {
	window      time.Duration
	lockout     time.Duration
	maxAttempts int
	mutex       sync.Mutex
	stateByIP   map[string]*loginAttemptState
	now         func() time.Time
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{
		window:      loginAttemptWindow,
		lockout:     loginLockoutDuration,
		maxAttempts: maxFailedLoginAttempts,
		stateByIP:   make(map[string]*loginAttemptState),
		now:         time.Now,
	}
}

// Allow reports whether the IP may attempt a login, and the remaining lockout
// duration when it may not.
func (limiter *loginLimiter) Allow(ip string) (bool, time.Duration) {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	now := limiter.now()
	state, known := limiter.stateByIP[ip]
	if !known {
		return true, 0
	}
	if state.lockUntil.After(now) {
		return false, state.lockUntil.Sub(now)
	}

	state.failures = pruneOldFailures(state.failures, now.Add(-limiter.window))
	if len(state.failures) >= limiter.maxAttempts {
		state.lockUntil = now.Add(limiter.lockout)
		return false, limiter.lockout
	}
	return true, 0
}

// RecordFailure counts one failed attempt for the IP.
func (limiter *loginLimiter) RecordFailure(ip string) {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	state, known := limiter.stateByIP[ip]
	if !known {
		state = &loginAttemptState{}
		limiter.stateByIP[ip] = state
	}
	state.failures = append(state.failures, limiter.now())
}

// RecordSuccess clears the failure history for the IP.
func (limiter *loginLimiter) RecordSuccess(ip string) {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	delete(limiter.stateByIP, ip)
}

func pruneOldFailures(failures []time.Time, cutoff time.Time) []time.Time {
	pruned := failures[:0]
	for _, failure := range failures {
		if failure.After(cutoff) {
			pruned = append(pruned, failure)
		}
	}
	return pruned
}
