package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthenticator() *JWTAuthenticator {
	return NewJWTAuthenticator(Config{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "storefront",
		Audience:      "storefront-web",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	})
}

func TestGenerateAndValidate(t *testing.T) {
	a := testAuthenticator()

	access, refresh, err := a.GenerateTokens(42)
	require.NoError(t, err)

	tok, err := a.ValidateAccessToken(access)
	require.NoError(t, err)
	id, err := UserID(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	rtok, err := a.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	id, err = UserID(rtok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	a := testAuthenticator()
	access, refresh, err := a.GenerateTokens(42)
	require.NoError(t, err)

	_, err = a.ValidateAccessToken(refresh)
	assert.Error(t, err)
	_, err = a.ValidateRefreshToken(access)
	assert.Error(t, err)
}

func TestAccessTokenExpires(t *testing.T) {
	a := testAuthenticator()
	access, _, err := a.GenerateTokens(42)
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = a.ValidateAccessToken(access)
	assert.Error(t, err)
}

func TestWrongAudienceRejected(t *testing.T) {
	a := testAuthenticator()
	access, _, err := a.GenerateTokens(42)
	require.NoError(t, err)

	other := testAuthenticator()
	other.cfg.Audience = "admin"
	_, err = other.ValidateAccessToken(access)
	assert.Error(t, err)
}
