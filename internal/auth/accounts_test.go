package auth

import (
	"context"
	"testing"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/models"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, pair, err := f.accounts.Register(ctx, "Ada", " Ada@Example.com ", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.Equal(t, "bearer", pair.TokenType)

	claims, err := f.tokens.Validate(ctx, pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	_, _, err = f.accounts.Register(ctx, "Ada", "ada@example.com", "another-pass")
	require.ErrorIs(t, err, ErrEmailTaken)
	require.ErrorIs(t, err, common.ErrConflict)

	_, _, err = f.accounts.Login(ctx, "ada@example.com", "wrong")
	require.ErrorIs(t, err, ErrBadCredentials)

	_, _, err = f.accounts.Login(ctx, "nobody@example.com", "s3cret-pass")
	require.ErrorIs(t, err, ErrBadCredentials)

	logged, _, err := f.accounts.Login(ctx, "ADA@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)
}

func TestLogout_RevokesAccessAndRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.accounts.Register(ctx, "Bob", "bob@example.com", "s3cret-pass")
	require.NoError(t, err)
	claims, err := f.tokens.Validate(ctx, pair.AccessToken, TokenAccess)
	require.NoError(t, err)

	f.accounts.Logout(ctx, claims, pair.RefreshToken)

	_, err = f.tokens.Validate(ctx, pair.AccessToken, TokenAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// unknown refresh tokens are ignored
	f.accounts.Logout(ctx, nil, "garbage")
}

func TestUpdatePassword_RevokesRefreshTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, pair, err := f.accounts.Register(ctx, "Cy", "cy@example.com", "old-password")
	require.NoError(t, err)

	err = f.accounts.UpdatePassword(ctx, user.ID, "not-it", "new-password")
	require.ErrorIs(t, err, common.ErrValidation)

	require.NoError(t, f.accounts.UpdatePassword(ctx, user.ID, "old-password", "new-password"))

	_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	var cnt int64
	require.NoError(t, f.db.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Count(&cnt).Error)
	require.Zero(t, cnt)

	_, _, err = f.accounts.Login(ctx, "cy@example.com", "new-password")
	require.NoError(t, err)
}

func TestMe_UserGone(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Me(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}
