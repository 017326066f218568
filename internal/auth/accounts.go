package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Accounts covers registration, login and password changes on top of TokenService.
type Accounts struct {
	users  *UserRepo
	tokens *TokenService
	log    logrus.FieldLogger
}

func NewAccounts(users *UserRepo, tokens *TokenService, log logrus.FieldLogger) *Accounts {
	return &Accounts{users: users, tokens: tokens, log: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *Accounts) Register(ctx context.Context, name, email, password string) (*models.User, *TokenPair, error) {
	email = normalizeEmail(email)
	exists, err := a.users.EmailExists(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
	}
	if err := a.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if exists, _ := a.users.EmailExists(ctx, email); exists {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, err
	}

	pair, err := a.tokens.IssuePair(ctx, user.Email, user.ID)
	if err != nil {
		return nil, nil, err
	}
	a.log.WithField("user_id", user.ID).Info("auth: user registered")
	return user, pair, nil
}

func (a *Accounts) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := a.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			burnPasswordCheck(password)
			return nil, nil, ErrBadCredentials
		}
		return nil, nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, nil, ErrBadCredentials
	}

	pair, err := a.tokens.IssuePair(ctx, user.Email, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (a *Accounts) Me(ctx context.Context, userID string) (*models.User, error) {
	return a.users.GetByID(ctx, userID)
}

// Logout revokes the caller's access token and, when given, its refresh token.
// Failures are logged only: logout always succeeds from the client's view.
func (a *Accounts) Logout(ctx context.Context, access *Claims, refreshToken string) {
	if access != nil {
		if err := a.tokens.Revoke(ctx, access.ID); err != nil {
			a.log.WithError(err).Warn("auth: revoke access token on logout failed")
		}
	}
	if refreshToken == "" {
		return
	}
	rec, err := a.tokens.refresh.FindByToken(ctx, refreshToken)
	if err != nil {
		return
	}
	if access != nil && rec.UserID != access.UserID {
		return
	}
	if err := a.tokens.Revoke(ctx, rec.JTI); err != nil {
		a.log.WithError(err).Warn("auth: revoke refresh token on logout failed")
	}
}

func (a *Accounts) UpdatePassword(ctx context.Context, userID, current, next string) error {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, current) {
		return fmt.Errorf("%w: current password is incorrect", common.ErrValidation)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := a.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	return a.tokens.RevokeAllForUser(ctx, userID)
}
