package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/phonedeals/pkg/auth"
)

func TestPrincipalVariants(t *testing.T) {
	anon := auth.Anonymous()
	assert.True(t, anon.IsAnonymous())
	_, ok := anon.UserID()
	assert.False(t, ok)

	u := auth.User(9)
	assert.True(t, u.Is(9))
	assert.False(t, u.Is(10))
	assert.False(t, u.IsAdmin())

	admin := auth.Admin()
	assert.True(t, admin.IsAdmin())
	assert.False(t, admin.Is(0), "admin is never a users row")
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := auth.WithPrincipal(context.Background(), auth.User(4))
	assert.Equal(t, auth.User(4), auth.FromCtx(ctx))
	assert.Equal(t, auth.Anonymous(), auth.FromCtx(context.Background()))
}

func TestAccessTokenCarriesPrincipal(t *testing.T) {
	tok, exp, err := auth.IssueAccessToken(auth.User(12), time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := auth.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, auth.User(12), claims.Principal())

	tok, _, err = auth.IssueAdminToken("sess-1", 15*time.Minute)
	require.NoError(t, err)
	claims, err = auth.ValidateToken(tok)
	require.NoError(t, err)
	assert.True(t, claims.Principal().IsAdmin())
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestOnlyUsersGetPlainAccessTokens(t *testing.T) {
	_, _, err := auth.IssueAccessToken(auth.Anonymous(), time.Hour)
	assert.Error(t, err)
	_, _, err = auth.IssueAccessToken(auth.Admin(), time.Hour)
	assert.Error(t, err, "admin tokens must carry a session")
	_, _, err = auth.IssueAdminToken("", time.Hour)
	assert.ErrorIs(t, err, auth.ErrNoSession)
}

func TestAdminClaimsWithoutSessionAreAnonymous(t *testing.T) {
	c := auth.Claims{Purpose: auth.PurposeAccess, Role: auth.RoleAdmin}
	assert.True(t, c.Principal().IsAnonymous())
}

func TestExpiredTokenRejected(t *testing.T) {
	tok, _, err := auth.IssueAccessToken(auth.User(1), -time.Minute)
	require.NoError(t, err)
	_, err = auth.ValidateToken(tok)
	assert.Error(t, err)
}

func TestPurposeTokenIsNotAnAccessToken(t *testing.T) {
	tok, err := auth.IssuePurposeToken(auth.PurposeReset, 5, "a@b.co", time.Hour)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(tok)
	require.NoError(t, err)
	assert.True(t, claims.Principal().IsAnonymous())

	_, err = auth.ParsePurposeToken(tok, auth.PurposeVerifyEmail)
	assert.ErrorIs(t, err, auth.ErrWrongPurpose)

	claims, err = auth.ParsePurposeToken(tok, auth.PurposeReset)
	require.NoError(t, err)
	assert.Equal(t, uint(5), claims.UserID)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("Str0ng!pass")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(hash, "Str0ng!pass"))
	assert.False(t, auth.CheckPassword(hash, "wrong"))
	assert.False(t, auth.CheckPassword("", "anything"))
}
