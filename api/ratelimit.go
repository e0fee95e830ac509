package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// unknownClient is the sentinel identifier used when no client IP can be
// derived from the request. All such requests share one rate-limit entry.
const unknownClient = "unknown"

const limiterSweepInterval = 5 * time.Minute

// attemptRecord tracks login attempts from one client within the current
// window.
type attemptRecord struct {
	attempts     int
	firstAttempt time.Time
	lastAttempt  time.Time
}

// attemptResult is the outcome of checkAndRecord.
type attemptResult struct {
	// Allowed is false when the client has exhausted its attempts for the
	// current window.
	Allowed bool
	// Remaining is the number of attempts left in the window.
	Remaining int
	// ResetAt is when the current window ends and the counter resets.
	ResetAt time.Time
}

// loginRateLimiter tracks authentication attempts per client identifier
// within a sliding window. Every attempt counts, successful or not; a
// successful login clears the client's entry via clear. Identifiers are
// attacker-controlled strings and are only ever used as opaque map keys.
type loginRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*attemptRecord
	max     int
	window  time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// newLoginRateLimiter creates a limiter allowing max attempts per window and
// starts its background sweep. Call Close to stop the sweep.
func newLoginRateLimiter(max int, window time.Duration) *loginRateLimiter {
	rl := &loginRateLimiter{
		entries: make(map[string]*attemptRecord),
		max:     max,
		window:  window,
		stopCh:  make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// checkAndRecord records an attempt for clientID and reports whether it may
// proceed. A window is considered over only when the elapsed time strictly
// exceeds the window length; a request landing exactly on the boundary still
// belongs to the old window. While a client is blocked, calls neither
// increment the counter nor extend the block.
func (rl *loginRateLimiter) checkAndRecord(clientID string) attemptResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rec, ok := rl.entries[clientID]
	if !ok || now.Sub(rec.firstAttempt) > rl.window {
		rl.entries[clientID] = &attemptRecord{
			attempts:     1,
			firstAttempt: now,
			lastAttempt:  now,
		}
		return attemptResult{
			Allowed:   true,
			Remaining: rl.max - 1,
			ResetAt:   now.Add(rl.window),
		}
	}

	resetAt := rec.firstAttempt.Add(rl.window)
	if rec.attempts >= rl.max {
		return attemptResult{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	rec.attempts++
	rec.lastAttempt = now
	return attemptResult{
		Allowed:   true,
		Remaining: rl.max - rec.attempts,
		ResetAt:   resetAt,
	}
}

// clear removes the entry for clientID. Called on successful login.
func (rl *loginRateLimiter) clear(clientID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, clientID)
}

// sweep removes entries whose last attempt is older than the window. Memory
// hygiene only — checkAndRecord resets stale windows on its own.
func (rl *loginRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for id, rec := range rl.entries {
		if now.Sub(rec.lastAttempt) > rl.window {
			delete(rl.entries, id)
		}
	}
}

func (rl *loginRateLimiter) sweepLoop() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// Close stops the background sweep goroutine.
func (rl *loginRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// ---------------------------------------------------------------------------
// Client identifier extraction
// ---------------------------------------------------------------------------

// clientIdentifier returns the rate-limit key for the request: the
// best-effort client IP, or the shared "unknown" sentinel when nothing
// parses.
func (a *API) clientIdentifier(r *http.Request) string {
	if ip := extractClientIPWithProxies(r, a.trustedProxies); ip != "" {
		return ip
	}
	return unknownClient
}

// extractClientIPWithProxies returns the best-effort client IP address.
//
// Proxy headers (X-Forwarded-For, Forwarded, X-Real-IP) are honored either
// when no trusted proxies are configured (the portfolio site always sits
// behind its hosting platform's proxy) or when the request's RemoteAddr
// falls within one of the trusted CIDR ranges.
//
// Priority when proxy headers are trusted:
// 1. First valid entry in X-Forwarded-For
// 2. First valid "for=" value in Forwarded
// 3. X-Real-IP
// 4. RemoteAddr
func extractClientIPWithProxies(r *http.Request, trustedProxies []netip.Prefix) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := len(trustedProxies) == 0
	if !proxyTrusted && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}

		if fwd := strings.TrimSpace(r.Header.Get("Forwarded")); fwd != "" {
			for _, elem := range strings.Split(fwd, ",") {
				for _, param := range strings.Split(elem, ";") {
					param = strings.TrimSpace(param)
					if !strings.HasPrefix(strings.ToLower(param), "for=") {
						continue
					}
					if ip, ok := parseIPCandidate(param[4:]); ok {
						return ip
					}
				}
			}
		}

		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	return remoteIP
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	if s == "" {
		return "", false
	}

	// RFC 7239 quoted IPv6 may appear as [::1]:1234.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	// Drop zone if any (e.g. fe80::1%eth0).
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String(), true
	}
	if ip := net.ParseIP(s); ip != nil {
		return ip.String(), true
	}
	return "", false
}
