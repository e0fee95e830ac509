package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the RFC 6238 SHA-1 reference secret ("12345678901234567890")
// in base32.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestTOTPCodeAt_ReferenceVectors(t *testing.T) {
	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
	}
	for _, tt := range tests {
		got, err := totpCodeAt(rfcSecret, time.Unix(tt.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "code at t=%d", tt.unix)
	}
}

func TestVerifyTOTPCode_Window(t *testing.T) {
	now := time.Unix(1111111109, 0)

	// Codes for the five steps inside the ±2 tolerance all verify; the
	// steps just outside do not.
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"two steps behind", "150727", true},
		{"one step behind", "731029", true},
		{"current step", "081804", true},
		{"one step ahead", "050471", true},
		{"two steps ahead", "266759", true},
		{"three steps behind", "404137", false},
		{"three steps ahead", "306183", false},
		{"five minutes old", "677498", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifyTOTPCode(rfcSecret, tt.code, now))
		})
	}
}

func TestVerifyTOTPCode_Normalization(t *testing.T) {
	now := time.Unix(1111111109, 0)

	assert.True(t, verifyTOTPCode(rfcSecret, " 081804 ", now), "surrounding whitespace is stripped")
	assert.True(t, verifyTOTPCode(rfcSecret, "081 804", now), "inner spaces are stripped")
}

func TestVerifyTOTPCode_RejectsMalformed(t *testing.T) {
	now := time.Unix(1111111109, 0)

	malformed := []string{"", "12345", "1234567", "abcdef", "08180a", "08-804"}
	for _, code := range malformed {
		assert.False(t, verifyTOTPCode(rfcSecret, code, now), "code %q should be rejected", code)
	}
}

func TestVerifyTOTPCode_BadSecret(t *testing.T) {
	assert.False(t, verifyTOTPCode("not base32!!", "081804", time.Unix(1111111109, 0)))
}

func TestValidTOTPCode(t *testing.T) {
	assert.True(t, validTOTPCode("000000"))
	assert.True(t, validTOTPCode("999999"))
	assert.False(t, validTOTPCode("00000"))
	assert.False(t, validTOTPCode("0000000"))
	assert.False(t, validTOTPCode("00000x"))
}
