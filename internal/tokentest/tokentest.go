// Package tokentest mints bearer tokens shaped like the ones the campus REST
// API issues, for use in tests.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Secret signs every test token. Nothing in the portal verifies it.
const Secret = "test-signing-secret"

// Mint returns an HS256 token for subject that expires at exp.
func Mint(t testing.TB, subject string, exp time.Time) string {
	t.Helper()
	return MintClaims(t, jwtlib.MapClaims{
		"sub": subject,
		"exp": exp.Unix(),
		"iat": exp.Add(-12 * time.Hour).Unix(),
	})
}

// MintClaims signs arbitrary claims, which lets tests produce tokens with a
// missing or non-numeric exp.
func MintClaims(t testing.TB, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(Secret))
	require.NoError(t, err)
	return signed
}
