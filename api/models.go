package api

import "github.com/keygate/config"

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Password string `json:"password"`
	TOTPCode string `json:"totpCode,omitempty"`
}

// LoginResponse is returned from a successful POST /auth/login.
type LoginResponse struct {
	Success bool `json:"success"`
}

// LogoutResponse is returned from POST /auth/logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// CheckResponse is returned from GET /auth/check.
type CheckResponse struct {
	Authenticated bool `json:"authenticated"`
}

// MFAStatusResponse is returned from GET /auth/mfa-status.
type MFAStatusResponse struct {
	MFAEnabled bool `json:"mfaEnabled"`
}

// KeysResponse is returned from GET /keys.
type KeysResponse struct {
	Keys []config.SSHKey `json:"keys"`
}

// ErrorResponse is returned for all error cases. RemainingAttempts and
// MFARequired only accompany 401s from login; ResetAt only accompanies 429s.
type ErrorResponse struct {
	Error             string `json:"error"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
	MFARequired       *bool  `json:"mfaRequired,omitempty"`
	ResetAt           int64  `json:"resetAt,omitempty"`
}
