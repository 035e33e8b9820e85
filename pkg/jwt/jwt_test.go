package jwt

import (
	"context"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestService_RoundTrip(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	token, err := svc.GenerateToken("user-1", "a@example.com", map[string]any{
		"role":        "agent",
		"company_ids": []int64{4, 9},
		"sub":         "ignored",
	})
	require.NoError(t, err)

	id, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.Subject)
	assert.Equal(t, "a@example.com", id.Email)
	assert.Equal(t, "agent", id.Role())
	assert.Equal(t, []int64{4, 9}, id.CompanyIDs())
}

func TestService_ValidateErrors(t *testing.T) {
	svc := NewService(testSecret, time.Hour)
	good, err := svc.GenerateToken("u", "e@x.io", nil)
	require.NoError(t, err)

	expired := NewService(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.GenerateToken("u", "e@x.io", nil)
	require.NoError(t, err)

	future := NewService(testSecret, time.Hour)
	future.now = func() time.Time { return time.Now().Add(time.Hour) }
	futureToken, err := future.GenerateToken("u", "e@x.io", nil)
	require.NoError(t, err)

	otherKey, err := NewService("other-secret", time.Hour).GenerateToken("u", "e@x.io", nil)
	require.NoError(t, err)

	none := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.MapClaims{"sub": "u"})
	noneToken, err := none.SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrNoToken},
		{name: "malformed", token: "not.a.jwt", want: ErrInvalidToken},
		{name: "garbage", token: "abc", want: ErrInvalidToken},
		{name: "wrong key", token: otherKey, want: ErrInvalidToken},
		{name: "alg none", token: noneToken, want: ErrInvalidToken},
		{name: "expired", token: expiredToken, want: ErrExpiredToken},
		{name: "not yet valid", token: futureToken, want: ErrInvalidToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Validate(tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err = svc.Validate(good)
	assert.NoError(t, err)
}

func TestIdentityFromClaims_LegacySubject(t *testing.T) {
	id := identityFromClaims(gojwt.MapClaims{"user_id": float64(42), "email": "x@y.z"})
	assert.Equal(t, "42", id.Subject)
	assert.Equal(t, "x@y.z", id.Email)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Subject: "s"})
	id, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "s", id.Subject)
}
