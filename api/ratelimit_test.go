package api

import (
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	rl := newLoginRateLimiter(5, 15*time.Minute)
	defer rl.Close()

	for i := 0; i < 5; i++ {
		res := rl.checkAndRecord("client-1")
		require.True(t, res.Allowed, "attempt %d should be allowed", i+1)
		assert.Equal(t, 5-(i+1), res.Remaining)
	}
}

func TestRateLimiter_BlocksAfterMax(t *testing.T) {
	rl := newLoginRateLimiter(5, 15*time.Minute)
	defer rl.Close()

	for i := 0; i < 5; i++ {
		rl.checkAndRecord("client-1")
	}

	res := rl.checkAndRecord("client-1")
	require.False(t, res.Allowed, "sixth attempt should be blocked")
	assert.Equal(t, 0, res.Remaining)
	assert.True(t, res.ResetAt.After(time.Now()), "reset time should be in the future")
}

func TestRateLimiter_BlockedDoesNotIncrement(t *testing.T) {
	rl := newLoginRateLimiter(5, 15*time.Minute)
	defer rl.Close()

	for i := 0; i < 5; i++ {
		rl.checkAndRecord("client-1")
	}
	first := rl.checkAndRecord("client-1")
	require.False(t, first.Allowed)

	// Hammering while blocked must not extend the block.
	for i := 0; i < 10; i++ {
		res := rl.checkAndRecord("client-1")
		require.False(t, res.Allowed)
		assert.Equal(t, first.ResetAt, res.ResetAt, "reset time should not move while blocked")
	}

	rl.mu.Lock()
	attempts := rl.entries["client-1"].attempts
	rl.mu.Unlock()
	assert.Equal(t, 5, attempts, "blocked calls should not increment the counter")
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := newLoginRateLimiter(5, 15*time.Minute)
	defer rl.Close()

	for i := 0; i < 5; i++ {
		rl.checkAndRecord("client-1")
	}
	require.False(t, rl.checkAndRecord("client-1").Allowed)

	// Age the window past its end; the next attempt opens a fresh one.
	rl.mu.Lock()
	rl.entries["client-1"].firstAttempt = time.Now().Add(-16 * time.Minute)
	rl.mu.Unlock()

	res := rl.checkAndRecord("client-1")
	require.True(t, res.Allowed, "attempt after window end should be allowed")
	assert.Equal(t, 4, res.Remaining, "fresh window should start at one attempt used")
}

func TestRateLimiter_BoundaryIsStrict(t *testing.T) {
	rl := newLoginRateLimiter(5, 15*time.Minute)
	defer rl.Close()

	for i := 0; i < 5; i++ {
		rl.checkAndRecord("client-1")
	}

	// An elapsed time of exactly the window length still belongs to the old
	// window; only strictly greater resets. Back-date just shy of 15m so the
	// elapsed time at check is still <= window despite test scheduling.
	rl.mu.Lock()
	rl.entries["client-1"].firstAttempt = time.Now().Add(-15*time.Minute + 50*time.Millisecond)
	rl.mu.Unlock()

	res := rl.checkAndRecord("client-1")
	assert.False(t, res.Allowed, "attempt on the window boundary should still be blocked")
}

func TestRateLimiter_ClearOnSuccess(t *testing.T) {
	rl := newLoginRateLimiter(5, 15*time.Minute)
	defer rl.Close()

	for i := 0; i < 4; i++ {
		rl.checkAndRecord("client-1")
	}
	rl.clear("client-1")

	res := rl.checkAndRecord("client-1")
	require.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining, "counter should restart after clear")
}

func TestRateLimiter_IsolatesClients(t *testing.T) {
	rl := newLoginRateLimiter(5, 15*time.Minute)
	defer rl.Close()

	for i := 0; i < 6; i++ {
		rl.checkAndRecord("client-1")
	}
	require.False(t, rl.checkAndRecord("client-1").Allowed)

	res := rl.checkAndRecord("client-2")
	assert.True(t, res.Allowed, "one client's lockout should not affect another")
	assert.Equal(t, 4, res.Remaining)
}

func TestRateLimiter_SweepRemovesStale(t *testing.T) {
	rl := newLoginRateLimiter(5, 15*time.Minute)
	defer rl.Close()

	rl.mu.Lock()
	rl.entries["stale"] = &attemptRecord{
		attempts:     3,
		firstAttempt: time.Now().Add(-time.Hour),
		lastAttempt:  time.Now().Add(-time.Hour),
	}
	rl.entries["fresh"] = &attemptRecord{
		attempts:     3,
		firstAttempt: time.Now(),
		lastAttempt:  time.Now(),
	}
	rl.mu.Unlock()

	rl.sweep()

	rl.mu.Lock()
	_, staleExists := rl.entries["stale"]
	_, freshExists := rl.entries["fresh"]
	rl.mu.Unlock()
	assert.False(t, staleExists, "sweep should remove stale entries")
	assert.True(t, freshExists, "sweep should keep entries within the window")
}

// ---------------------------------------------------------------------------
// Client identifier extraction
// ---------------------------------------------------------------------------

func TestExtractClientIPWithProxies_NoProxyConfig(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote ipv4",
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "remote ipv6",
			remoteAddr: "[::1]:8080",
			want:       "::1",
		},
		{
			name:       "xff first valid wins",
			remoteAddr: "10.0.0.1:80",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.25, 203.0.113.9",
			},
			want: "198.51.100.25",
		},
		{
			name:       "xff skips invalid entries",
			remoteAddr: "10.0.0.1:80",
			headers: map[string]string{
				"X-Forwarded-For": "unknown, not-an-ip, 203.0.113.7",
			},
			want: "203.0.113.7",
		},
		{
			name:       "forwarded fallback",
			remoteAddr: "10.0.0.1:80",
			headers: map[string]string{
				"Forwarded": `for=198.51.100.1;proto=https;by=203.0.113.43`,
			},
			want: "198.51.100.1",
		},
		{
			name:       "forwarded quoted ipv6 with port",
			remoteAddr: "10.0.0.1:80",
			headers: map[string]string{
				"Forwarded": `for="[2001:db8::42]:1234"`,
			},
			want: "2001:db8::42",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:80",
			headers: map[string]string{
				"X-Real-IP": "203.0.113.11",
			},
			want: "203.0.113.11",
		},
		{
			name:       "empty when nothing parseable",
			remoteAddr: "not-a-hostport",
			want:       "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr}
			r.Header = make(http.Header)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			got := extractClientIPWithProxies(r, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractClientIPWithProxies_TrustedProxies(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "trusted proxy honors XFF",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.25"},
			want:       "198.51.100.25",
		},
		{
			name:       "untrusted peer ignores XFF",
			remoteAddr: "192.168.1.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.25"},
			want:       "192.168.1.1",
		},
		{
			name:       "untrusted peer ignores X-Real-IP",
			remoteAddr: "192.168.1.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.25"},
			want:       "192.168.1.1",
		},
		{
			name:       "trusted proxy with no headers falls back to remote",
			remoteAddr: "10.0.0.1:80",
			want:       "10.0.0.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr}
			r.Header = make(http.Header)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			got := extractClientIPWithProxies(r, trusted)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractClientIPWithProxies_SpoofAttempt(t *testing.T) {
	// A direct connection trying to look internal via forged headers. With
	// trusted proxies configured, only the TCP peer counts.
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	r := &http.Request{
		RemoteAddr: "203.0.113.99:12345",
		Header: http.Header{
			"X-Forwarded-For": []string{"10.0.0.1"},
			"Forwarded":       []string{"for=10.0.0.2"},
			"X-Real-Ip":       []string{"10.0.0.3"},
		},
	}
	got := extractClientIPWithProxies(r, trusted)
	assert.Equal(t, "203.0.113.99", got)
}

func TestClientIdentifier_UnknownFallback(t *testing.T) {
	a := &API{}
	r := &http.Request{RemoteAddr: "garbage", Header: make(http.Header)}
	assert.Equal(t, unknownClient, a.clientIdentifier(r))
}

func TestWithTrustedProxies(t *testing.T) {
	t.Run("valid CIDRs", func(t *testing.T) {
		opt, err := WithTrustedProxies([]string{"10.0.0.0/8", "172.16.0.0/12"})
		require.NoError(t, err)
		require.NotNil(t, opt)
	})

	t.Run("bare IP treated as /32", func(t *testing.T) {
		opt, err := WithTrustedProxies([]string{"10.0.0.1"})
		require.NoError(t, err)
		require.NotNil(t, opt)
	})

	t.Run("bare IPv6 treated as /128", func(t *testing.T) {
		opt, err := WithTrustedProxies([]string{"::1"})
		require.NoError(t, err)
		require.NotNil(t, opt)
	})

	t.Run("invalid CIDR returns error", func(t *testing.T) {
		_, err := WithTrustedProxies([]string{"not-a-cidr"})
		require.Error(t, err)
	})
}
