package api

import "net/http"

// ListKeys handles GET /keys, the protected resource behind the gate.
// Protection is session validity alone — reads by an authenticated session
// are not a credential-guessing vector, so no rate limiting applies here.
func (a *API) ListKeys(w http.ResponseWriter, r *http.Request) {
	if !a.sessions.IsValid(sessionTokenFromRequest(r)) {
		a.audit.logFailure(AuditKeysDenied, r, "invalid or missing session")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if len(a.cfg.Keys) == 0 {
		writeError(w, http.StatusNotFound, "no keys configured")
		return
	}

	a.audit.log(AuditKeysAccessed, r)
	writeJSON(w, http.StatusOK, KeysResponse{Keys: a.cfg.Keys})
}
