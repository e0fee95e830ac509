// Package api implements the HTTP authentication gate for the portfolio
// site's SSH keys page: login with password plus optional TOTP, cookie
// sessions, per-client rate limiting, and the protected key listing.
package api

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/keygate/config"
	"github.com/keygate/notify"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	cfg            *config.Config
	verifier       *verifier
	sessions       *sessionService
	limiter        *loginRateLimiter
	audit          *auditLogger
	metrics        *metricsCollector
	notifier       notify.Notifier
	trustedProxies []netip.Prefix
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSessionStore overrides the default in-memory session store.
func WithSessionStore(store SessionStore) Option {
	return func(a *API) {
		a.sessions = newSessionService(store)
	}
}

// WithNotifier enables best-effort login notifications.
func WithNotifier(n notify.Notifier) Option {
	return func(a *API) {
		a.notifier = n
	}
}

// WithAlertFunc sets the callback invoked on login-failure spikes.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.metrics = newMetricsCollector(fn)
	}
}

// WithTrustedProxies restricts which peers may supply forwarded-IP headers.
// Entries are CIDRs; bare IPs are treated as /32 (or /128).
func WithTrustedProxies(cidrs []string) (Option, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		s := strings.TrimSpace(raw)
		if !strings.Contains(s, "/") {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return func(a *API) {
		a.trustedProxies = prefixes
	}, nil
}

// New creates a new API instance from the immutable startup configuration.
// Call Close at shutdown to stop the background sweeps.
func New(cfg *config.Config, opts ...Option) *API {
	a := &API{
		cfg:      cfg,
		verifier: newVerifier(cfg.Password, cfg.PasswordIsHash, cfg.TOTPSecret),
		limiter:  newLoginRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	if a.sessions == nil {
		a.sessions = newSessionService(NewMemorySessionStore())
	}
	if a.metrics == nil {
		a.metrics = newMetricsCollector(func(ev AlertEvent) {
			a.audit.logger.Warn("alert",
				"type", string(ev.Type),
				"message", ev.Message,
				"count", ev.Count,
				"threshold", ev.Threshold)
		})
	}
	a.audit.metrics = a.metrics
	return a
}

// Close stops the session and rate-limit background sweeps.
func (a *API) Close() {
	a.sessions.Close()
	a.limiter.Close()
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/redoc",
	}, nil))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", a.Login)
		r.Post("/logout", a.Logout)
		r.Get("/check", a.Check)
		r.Get("/mfa-status", a.MFAStatus)
	})
	r.Get("/keys", a.ListKeys)

	return r
}
