package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/notify"
)

const (
	// invalidCredentialsMsg is the single error message for every failing
	// credential combination. Which factor failed is never revealed.
	invalidCredentialsMsg = "invalid credentials"
	// mfaCodeRequiredMsg is returned when MFA is enabled and no code was
	// supplied. Still a 401 and still charged against the rate limiter,
	// so the response class is indistinguishable from a wrong password.
	mfaCodeRequiredMsg = "authentication code required"

	notifyTimeout = 10 * time.Second
)

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	if !a.verifier.Configured() {
		a.audit.logFailure(AuditConfigError, r, "gate password not configured")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	clientID := a.clientIdentifier(r)

	// Every login call consumes a rate-limit attempt, before the verifier
	// runs — a locked-out client cannot use the verifier as an oracle.
	res := a.limiter.checkAndRecord(clientID)
	if !res.Allowed {
		a.audit.logFailure(AuditLoginRateLimited, r, "rate limited",
			slog.String("client_id", clientID),
			slog.Time("reset_at", res.ResetAt))
		writeRateLimitCookie(w, r, res.ResetAt)
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:   "too many attempts; try again later",
			ResetAt: res.ResetAt.Unix(),
		})
		return
	}

	vres := a.verifier.Verify(req.Password, req.TOTPCode)

	if vres.MFARequired && strings.TrimSpace(req.TOTPCode) == "" {
		// Deliberately charged as a full failed attempt even though the
		// password may be right: not distinguishing "forgot the code"
		// from "wrong password" keeps lockout accounting uniform.
		a.audit.logFailure(AuditLoginFailure, r, "mfa code missing",
			slog.String("client_id", clientID))
		a.notifyAsync(r, clientID, false)
		mfaRequired := true
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:             mfaCodeRequiredMsg,
			RemainingAttempts: &res.Remaining,
			MFARequired:       &mfaRequired,
		})
		return
	}

	if !vres.OK() {
		a.audit.logFailure(AuditLoginFailure, r, failureReason(vres),
			slog.String("client_id", clientID))
		a.notifyAsync(r, clientID, false)
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:             invalidCredentialsMsg,
			RemainingAttempts: &res.Remaining,
		})
		return
	}

	token, err := a.sessions.Create(a.cfg.SessionTTL)
	if err != nil {
		a.internalError(w, r, "failed to create session", err)
		return
	}
	a.limiter.clear(clientID)

	writeSessionCookie(w, r, token, a.cfg.SessionTTL)
	clearRateLimitCookie(w, r)

	a.audit.log(AuditLoginSuccess, r, slog.String("client_id", clientID))
	a.notifyAsync(r, clientID, true)
	writeJSON(w, http.StatusOK, LoginResponse{Success: true})
}

// failureReason names the failing factor for the audit log only; responses
// never carry it.
func failureReason(res verifyResult) string {
	switch {
	case !res.PasswordOK && res.MFARequired && !res.MFAOK:
		return "invalid password and code"
	case !res.PasswordOK:
		return "invalid password"
	default:
		return "invalid totp code"
	}
}

// Logout handles POST /auth/logout. Idempotent: the cookie is cleared
// whether or not a live session was found.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionTokenFromRequest(r); token != "" {
		a.sessions.Remove(token)
	}
	clearSessionCookie(w, r)
	a.audit.log(AuditLogout, r)
	writeJSON(w, http.StatusOK, LogoutResponse{Success: true})
}

// Check handles GET /auth/check. A missing or invalid cookie is not an
// error, simply "not authenticated".
func (a *API) Check(w http.ResponseWriter, r *http.Request) {
	authenticated := a.sessions.IsValid(sessionTokenFromRequest(r))
	writeJSON(w, http.StatusOK, CheckResponse{Authenticated: authenticated})
}

// MFAStatus handles GET /auth/mfa-status. Unauthenticated by design: it
// exposes only whether a code will be asked for, never the secret.
func (a *API) MFAStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MFAStatusResponse{MFAEnabled: a.verifier.MFARequired()})
}

// notifyAsync fires the login notification without blocking the request.
// Errors are logged and swallowed; the authentication outcome is already
// decided by the time this runs.
func (a *API) notifyAsync(r *http.Request, clientID string, success bool) {
	if a.notifier == nil {
		return
	}
	ev := notify.Event{
		ID:       uuid.NewString(),
		Success:  success,
		ClientID: clientID,
		Time:     time.Now(),
	}
	logger := a.audit.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := a.notifier.LoginAttempt(ctx, ev); err != nil {
			logger.Warn("login notification failed",
				"event", string(AuditNotifyFailed),
				"notification_id", ev.ID,
				"error", err.Error())
		}
	}()
}
