package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "u1", "ann@example.com", "USER", time.Hour)
	require.NoError(t, err)

	id, err := NewJWTVerifier("s3cret").Verify(tok.Token)

	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "ann@example.com", id.Email)
	assert.Equal(t, "USER", id.Role)
}

func TestVerify_Rejects(t *testing.T) {
	v := NewJWTVerifier("s3cret")

	expired, err := NewAccessToken("s3cret", "u1", "", "USER", -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewAccessToken("other", "u1", "", "USER", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-jwt",
		"expired":    expired.Token,
		"other key":  otherKey.Token,
		"no subject": noSubject,
		"alg none":   unsigned,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
