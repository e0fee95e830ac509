package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

// verifier checks a submitted password and optional TOTP code against the
// configured secrets. It holds no mutable state; the secrets are fixed at
// construction.
type verifier struct {
	// password is the sealed gate secret: either the plaintext password or
	// a bcrypt hash of it. Nil means the server is misconfigured.
	password *memguard.Enclave
	hashed   bool

	// totpSecret non-empty means MFA is required.
	totpSecret string
}

// verifyResult reports each factor separately so the caller can distinguish
// "code missing" from "code wrong" internally. Callers must never surface
// which factor failed.
type verifyResult struct {
	PasswordOK  bool
	MFAOK       bool
	MFARequired bool
}

// OK reports the combined authentication decision.
func (r verifyResult) OK() bool {
	return r.PasswordOK && (r.MFAOK || !r.MFARequired)
}

func newVerifier(password *memguard.Enclave, hashed bool, totpSecret string) *verifier {
	return &verifier{
		password:   password,
		hashed:     hashed,
		totpSecret: totpSecret,
	}
}

// Configured reports whether a gate password exists at all.
func (v *verifier) Configured() bool { return v.password != nil }

// MFARequired reports whether a TOTP code is required to log in.
func (v *verifier) MFARequired() bool { return v.totpSecret != "" }

// Verify checks the submitted password and code. The password comparison
// never short-circuits on a character mismatch: both sides are hashed and
// compared in constant time (or handed to bcrypt, which does the same).
func (v *verifier) Verify(password, totpCode string) verifyResult {
	res := verifyResult{MFARequired: v.MFARequired()}
	if v.password == nil {
		return res
	}

	res.PasswordOK = v.passwordMatches(password)

	if res.MFARequired && strings.TrimSpace(totpCode) != "" {
		res.MFAOK = verifyTOTPCode(v.totpSecret, totpCode, time.Now())
	}
	return res
}

func (v *verifier) passwordMatches(password string) bool {
	buf, err := v.password.Open()
	if err != nil {
		return false
	}
	defer buf.Destroy()

	// NFKC so that visually identical input composed differently (IME,
	// mobile keyboards) still matches.
	submitted := norm.NFKC.String(password)

	if v.hashed {
		return bcrypt.CompareHashAndPassword(buf.Bytes(), []byte(submitted)) == nil
	}

	want := sha256.Sum256(buf.Bytes())
	got := sha256.Sum256([]byte(submitted))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}
