package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/logger"
	"github.com/FrK06/web-rag-original/internal/models"
	"github.com/FrK06/web-rag-original/internal/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	tokens   *TokenService
	accounts *Accounts
	users    *UserRepo
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.Discard()
	users := NewUserRepo(db)
	tokens := NewTokenService(TokenConfig{Secret: "test-secret"}, redisstore.Wrap(rdb), NewRefreshRepo(db), users, log)
	return &fixture{
		db:       db,
		mr:       mr,
		tokens:   tokens,
		accounts: NewAccounts(users, tokens, log),
		users:    users,
	}
}

func (f *fixture) createUser(t *testing.T, id, email string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Name: "Test", Email: email, PasswordHash: "x"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestValidate_AccessToken(t *testing.T) {
	f := newFixture(t)

	tok, issued, err := f.tokens.IssueAccessToken("a@example.com", "u1")
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	claims, err := f.tokens.Validate(context.Background(), tok, TokenAccess)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "a@example.com", claims.Subject)
	require.Equal(t, issued.ID, claims.ID)
}

func TestValidate_RejectsTypeMismatchAndGarbage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _, err := f.tokens.IssueAccessToken("a@example.com", "u1")
	require.NoError(t, err)

	_, err = f.tokens.Validate(ctx, tok, TokenRefresh)
	require.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = f.tokens.Validate(ctx, "not.a.jwt", TokenAccess)
	require.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenService(TokenConfig{Secret: "other"}, nil, nil, nil, logger.Discard())
	forged, _, err := other.IssueAccessToken("a@example.com", "u1")
	require.NoError(t, err)
	_, err = f.tokens.Validate(ctx, forged, TokenAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Expired(t *testing.T) {
	f := newFixture(t)
	base := time.Now()
	f.tokens.now = func() time.Time { return base }

	tok, _, err := f.tokens.IssueAccessToken("a@example.com", "u1")
	require.NoError(t, err)

	f.tokens.now = func() time.Time { return base.Add(16 * time.Minute) }
	_, err = f.tokens.Validate(context.Background(), tok, TokenAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevoke_InvalidatesBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, claims, err := f.tokens.IssueAccessToken("a@example.com", "u1")
	require.NoError(t, err)
	_, err = f.tokens.Validate(ctx, tok, TokenAccess)
	require.NoError(t, err)

	require.NoError(t, f.tokens.Revoke(ctx, claims.ID))

	_, err = f.tokens.Validate(ctx, tok, TokenAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.True(t, f.mr.Exists("revoked:"+claims.ID))
	require.Greater(t, f.mr.TTL("revoked:"+claims.ID), time.Duration(0), "revocation entries are bounded")
}

func TestValidate_FailsClosedWhenStoreDown(t *testing.T) {
	f := newFixture(t)
	tok, _, err := f.tokens.IssueAccessToken("a@example.com", "u1")
	require.NoError(t, err)

	f.mr.Close()
	_, err = f.tokens.Validate(context.Background(), tok, TokenAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRefreshToken_PersistsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, claims, err := f.tokens.IssueRefreshToken(ctx, "a@example.com", "u1")
	require.NoError(t, err)

	var rec models.RefreshToken
	require.NoError(t, f.db.Where("token = ?", tok).First(&rec).Error)
	require.Equal(t, claims.ID, rec.JTI)
	require.Equal(t, "u1", rec.UserID)
	require.True(t, rec.ExpiresAt.After(rec.CreatedAt))

	v, err := f.mr.Get("refresh:" + claims.ID)
	require.NoError(t, err)
	require.Equal(t, "u1", v)
}

func TestIssueRefreshToken_FailsWithoutDurableStorage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&models.RefreshToken{}))

	_, _, err := f.tokens.IssueRefreshToken(context.Background(), "a@example.com", "u1")
	require.Error(t, err)
}

func TestRotate_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "u1", "a@example.com")

	pair, err := f.tokens.IssuePair(ctx, u.Email, u.ID)
	require.NoError(t, err)

	next, user, err := f.tokens.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, user.ID)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, _, err = f.tokens.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken, "old refresh token must be single-use")

	// the new chain still works
	_, _, err = f.tokens.Rotate(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestRotate_MissingUserPurgesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "u2", "b@example.com")

	p1, err := f.tokens.IssuePair(ctx, u.Email, u.ID)
	require.NoError(t, err)
	_, err = f.tokens.IssuePair(ctx, u.Email, u.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Delete(&models.User{}, "id = ?", u.ID).Error)

	_, _, err = f.tokens.Rotate(ctx, p1.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	var cnt int64
	require.NoError(t, f.db.Model(&models.RefreshToken{}).Where("user_id = ?", u.ID).Count(&cnt).Error)
	require.Zero(t, cnt)
}

func TestRotate_UnknownToken(t *testing.T) {
	f := newFixture(t)
	// signed correctly but never persisted
	tok, _, err := f.tokens.sign("a@example.com", "u1", TokenRefresh, time.Hour)
	require.NoError(t, err)

	_, _, err = f.tokens.Rotate(context.Background(), tok)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}
