package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/models"
	"github.com/FrK06/web-rag-original/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TokenConfig struct {
	Secret        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RevocationTTL time.Duration
}

// TokenService issues and checks HS256 session tokens. Access tokens are
// stateless apart from the revocation set; refresh tokens are persisted so
// they can be revoked and rotated.
type TokenService struct {
	cfg     TokenConfig
	kv      store.KV
	refresh *RefreshRepo
	users   *UserRepo
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewTokenService(cfg TokenConfig, kv store.KV, refresh *RefreshRepo, users *UserRepo, log logrus.FieldLogger) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.RevocationTTL <= 0 {
		cfg.RevocationTTL = 24 * time.Hour
	}
	return &TokenService{
		cfg:     cfg,
		kv:      kv,
		refresh: refresh,
		users:   users,
		log:     log,
		now:     time.Now,
	}
}

func revokedKey(jti string) string { return "revoked:" + jti }
func refreshKey(jti string) string { return "refresh:" + jti }

func (s *TokenService) sign(subject, userID string, typ TokenType, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Type:   typ,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", nil, err
	}
	return tok, claims, nil
}

func (s *TokenService) IssueAccessToken(subject, userID string) (string, *Claims, error) {
	return s.sign(subject, userID, TokenAccess, s.cfg.AccessTTL)
}

// IssueRefreshToken fails if the durable record cannot be written: a refresh
// token that cannot be revoked is never handed out.
func (s *TokenService) IssueRefreshToken(ctx context.Context, subject, userID string) (string, *Claims, error) {
	tok, claims, err := s.sign(subject, userID, TokenRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return "", nil, err
	}

	rec := &models.RefreshToken{
		Token:     tok,
		JTI:       claims.ID,
		UserID:    userID,
		CreatedAt: claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if err := s.refresh.Create(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("%w: persist refresh token: %v", common.ErrInternal, err)
	}

	if err := s.kv.Set(ctx, refreshKey(claims.ID), userID, s.cfg.RefreshTTL); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("auth: refresh fast-lookup write failed")
	}
	return tok, claims, nil
}

func (s *TokenService) IssuePair(ctx context.Context, subject, userID string) (*TokenPair, error) {
	access, _, err := s.IssueAccessToken(subject, userID)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.IssueRefreshToken(ctx, subject, userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// Validate checks signature, expiry, type and the revocation set.
func (s *TokenService) Validate(ctx context.Context, raw string, want TokenType) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return []byte(s.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, want)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		// revocation cannot be ruled out
		s.log.WithError(err).Warn("auth: revocation lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, errTokenStore)
	}
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return claims, nil
}

func (s *TokenService) isRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := s.kv.Get(ctx, revokedKey(jti))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNil) {
		return false, nil
	}
	return false, err
}

// Rotate exchanges a refresh token for a new pair. The old token is consumed
// exactly once; a second call with it fails.
func (s *TokenService) Rotate(ctx context.Context, oldRefresh string) (*TokenPair, *models.User, error) {
	if _, err := s.Validate(ctx, oldRefresh, TokenRefresh); err != nil {
		return nil, nil, ErrInvalidRefreshToken
	}

	rec, err := s.refresh.FindByToken(ctx, oldRefresh)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, err
	}
	if !rec.ExpiresAt.After(s.now().UTC()) {
		_, _ = s.refresh.DeleteByJTI(ctx, rec.JTI)
		return nil, nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// dangling tokens of a deleted user
			if err := s.RevokeAllForUser(ctx, rec.UserID); err != nil {
				s.log.WithError(err).WithField("user_id", rec.UserID).Warn("auth: purge tokens of missing user failed")
			}
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, err
	}

	n, err := s.refresh.DeleteByJTI(ctx, rec.JTI)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, nil, ErrInvalidRefreshToken
	}
	s.markRevoked(ctx, rec.JTI)

	pair, err := s.IssuePair(ctx, user.Email, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Revoke adds jti to the revocation set and drops its refresh record, if any.
func (s *TokenService) Revoke(ctx context.Context, jti string) error {
	if jti == "" {
		return nil
	}
	if err := s.kv.Set(ctx, revokedKey(jti), "1", s.cfg.RevocationTTL); err != nil {
		return fmt.Errorf("revoke %s: %w", jti, err)
	}
	if _, err := s.refresh.DeleteByJTI(ctx, jti); err != nil {
		return err
	}
	if err := s.kv.Del(ctx, refreshKey(jti)); err != nil {
		s.log.WithError(err).Warn("auth: refresh fast-lookup delete failed")
	}
	return nil
}

// RevokeAllForUser revokes every stored refresh token of userID.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	recs, err := s.refresh.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range recs {
		s.markRevoked(ctx, r.JTI)
	}
	return s.refresh.DeleteByUser(ctx, userID)
}

func (s *TokenService) markRevoked(ctx context.Context, jti string) {
	if err := s.kv.Set(ctx, revokedKey(jti), "1", s.cfg.RevocationTTL); err != nil {
		s.log.WithError(err).WithField("jti", jti).Warn("auth: revocation write failed")
	}
	if err := s.kv.Del(ctx, refreshKey(jti)); err != nil {
		s.log.WithError(err).WithField("jti", jti).Warn("auth: refresh fast-lookup delete failed")
	}
}
