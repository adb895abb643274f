package echoapi

import (
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolarhq/escolar/core"
	"github.com/escolarhq/escolar/core/user"
)

func TestGenerateToken_RoundTrip(t *testing.T) {
	ident := user.Identity{ID: 42, Role: user.RolePreceptor}

	token, err := GenerateToken(GetIdentityClaims(ident))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := jwt.ParseWithClaims(token, new(Claims), func(tk *jwt.Token) (interface{}, error) {
		return []byte(core.Conf.SecretKey), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(*Claims)
	require.True(t, ok)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "preceptor", claims.Role)
	assert.Equal(t, core.Conf.AppName, claims.Issuer)
	assert.Equal(t, ident, claims.Identity())
}

func TestGetIdentityClaims_Expiry(t *testing.T) {
	claims := GetIdentityClaims(user.Identity{ID: 1, Role: user.RoleAdmin})
	assert.Greater(t, claims.ExpiresAt, claims.IssuedAt)
	assert.Equal(t, claims.IssuedAt+int64(core.Conf.Server.JWTExpirationDelta.Seconds()), claims.ExpiresAt)
}
