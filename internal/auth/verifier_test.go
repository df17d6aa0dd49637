package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier("secret")
	token := signToken(t, "secret", Claims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	userID, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "alice", userID)
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	v := NewVerifier("secret")
	token := signToken(t, "secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "bob",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	userID, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "bob", userID)
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewVerifier("secret")
	token := signToken(t, "other", Claims{UserID: "alice"})

	_, err := v.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("secret")
	token := signToken(t, "secret", Claims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := v.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingUserID(t *testing.T) {
	v := NewVerifier("secret")
	token := signToken(t, "secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := v.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
