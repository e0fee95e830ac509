package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess     AuditEvent = "login_success"
	AuditLoginFailure     AuditEvent = "login_failure"
	AuditLoginRateLimited AuditEvent = "login_rate_limited"
	AuditLogout           AuditEvent = "logout"
	AuditKeysAccessed     AuditEvent = "keys_accessed"
	AuditKeysDenied       AuditEvent = "keys_denied"
	AuditNotifyFailed     AuditEvent = "notify_failed"
	AuditConfigError      AuditEvent = "config_error"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry. Client identifiers are throttling
// heuristics, safe for logs; submitted credentials never are and must not be
// passed here.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("audit_id", uuid.NewString()),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)

	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
}

// logFailure logs a failed or rejected attempt with its internal reason.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
