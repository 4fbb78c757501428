package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listmyspace/server/internal/models"
)

func TestIssueAndParse(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, issuer.TTL())

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := start
	issuer = issuer.WithClock(func() time.Time { return clock })

	user := &models.User{ID: 42, Username: "olga", Role: models.RoleOwner}
	token, err := issuer.Issue(user)
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "olga", claims.Username)
	assert.Equal(t, models.RoleOwner, claims.Role)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, start.Add(3*time.Hour).Unix(), claims.ExpiresAt.Unix())

	clock = start.Add(3*time.Hour + time.Second)
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseRejectsTampering(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("other-secret", time.Hour)
	require.NoError(t, err)

	token, err := other.Issue(&models.User{ID: 1, Username: "eve", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// unsigned tokens are refused
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Username:         "eve",
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsUnknownRole(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(&models.User{ID: 1, Username: "eve", Role: models.Role("superuser")})
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "battery staple"), ErrPasswordMismatch)

	_, err = HashPassword("short")
	assert.Error(t, err)
}

func TestPrincipal(t *testing.T) {
	user := &models.User{ID: 3, Username: "olga", Role: models.RoleOwner, Owner: &models.Owner{ID: 9}}
	p := NewPrincipal(user)

	assert.True(t, p.HasRole(models.RoleOwner, models.RoleAdmin))
	assert.False(t, p.HasRole(models.RoleCustomer))
	assert.True(t, p.Owns(9))
	assert.False(t, p.Owns(10))
	assert.Nil(t, p.CustomerID)
}
