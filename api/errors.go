package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// maxAuthBodySize bounds auth request bodies; login carries only a password
// and an optional six-digit code.
const maxAuthBodySize = 4 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// internalError logs the underlying error server-side and returns a generic
// message to the caller; internals never leak into response bodies.
func (a *API) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.audit.logger.LogAttrs(r.Context(), slog.LevelError, msg,
		slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a bounded JSON body into T, writing a 400 on failure.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}
