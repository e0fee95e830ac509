package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// sessionCookieName carries the opaque session token. HttpOnly — page
	// script can never read it.
	sessionCookieName = "keys_auth"
	// rateLimitCookieName carries the lockout reset time (Unix seconds) so
	// the UI can render a countdown. Deliberately NOT HttpOnly: this is
	// advisory state, never an authorization input — the authoritative
	// decision always lives server-side.
	rateLimitCookieName = "keys_rate_limit"
)

func writeSessionCookie(w http.ResponseWriter, r *http.Request, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func writeRateLimitCookie(w http.ResponseWriter, r *http.Request, resetAt time.Time) {
	maxAge := int(time.Until(resetAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     rateLimitCookieName,
		Value:    strconv.FormatInt(resetAt.Unix(), 10),
		Path:     "/",
		HttpOnly: false,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func clearRateLimitCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     rateLimitCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: false,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// sessionTokenFromRequest returns the raw session cookie value, or "" when
// absent.
func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
