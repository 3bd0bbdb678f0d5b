package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Login and unlock attempts run bcrypt plus PBKDF2, so throttling failed
// attempts also bounds CPU burn. With a single workspace there is no
// per-account dimension; limits are per source IP plus a global window.
const (
	ipMaxFailures = 5
	ipBaseLockout = 1 * time.Minute
	ipMaxLockout  = 15 * time.Minute
	attemptExpiry = 1 * time.Hour

	globalWindow      = 1 * time.Minute
	globalMaxFailures = 50
	globalLockout     = 5 * time.Minute
)

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// loginRateLimiter enforces exponential backoff per IP and a sliding-window
// cap across all sources.
type loginRateLimiter struct {
	mu             sync.Mutex
	attempts       map[string]*attemptRecord
	globalFailures []time.Time
	globalLocked   time.Time
}

func newLoginRateLimiter() *loginRateLimiter {
	return &loginRateLimiter{attempts: make(map[string]*attemptRecord)}
}

// check reports whether the IP (or everyone) is currently locked out, and
// for how much longer.
func (rl *loginRateLimiter) check(ip string) (blocked bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Before(rl.globalLocked) {
		return true, time.Until(rl.globalLocked)
	}

	rec, ok := rl.attempts[ip]
	if !ok {
		return false, 0
	}
	if now.Sub(rec.lastFailure) > attemptExpiry {
		delete(rl.attempts, ip)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, time.Until(rec.lockedUntil)
	}
	return false, 0
}

// recordFailure counts a failed password attempt and applies backoff once
// the per-IP threshold is crossed.
func (rl *loginRateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rec, ok := rl.attempts[ip]
	if !ok {
		rec = &attemptRecord{}
		rl.attempts[ip] = rec
	}
	rec.failures++
	rec.lastFailure = now

	if rec.failures >= ipMaxFailures {
		// Exponential backoff: ipBaseLockout * 2^(failures - ipMaxFailures)
		shift := rec.failures - ipMaxFailures
		lockout := ipBaseLockout
		for i := 0; i < shift; i++ {
			lockout *= 2
			if lockout > ipMaxLockout {
				lockout = ipMaxLockout
				break
			}
		}
		rec.lockedUntil = now.Add(lockout)
	}

	// Global sliding window.
	rl.globalFailures = append(rl.globalFailures, now)
	cutoff := now.Add(-globalWindow)
	start := 0
	for start < len(rl.globalFailures) && rl.globalFailures[start].Before(cutoff) {
		start++
	}
	rl.globalFailures = rl.globalFailures[start:]
	if len(rl.globalFailures) >= globalMaxFailures {
		rl.globalLocked = now.Add(globalLockout)
	}
}

// recordSuccess resets the counter for the IP.
func (rl *loginRateLimiter) recordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// sweep removes expired records. Called from the session sweeper.
func (rl *loginRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for ip, rec := range rl.attempts {
		if now.Sub(rec.lastFailure) > attemptExpiry {
			delete(rl.attempts, ip)
		}
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, errRateLimited, "too many failed attempts; try again later")
}

// extractClientIP returns the request's direct peer address. Proxy headers
// are deliberately not consulted; spoofable headers must never weaken the
// limiter.
func extractClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
