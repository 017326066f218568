package auth

import (
	"errors"
	"fmt"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

type Claims struct {
	Type   TokenType `json:"type"`
	UserID string    `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

var (
	ErrInvalidToken        = fmt.Errorf("%w: invalid token", common.ErrUnauthenticated)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid refresh token", common.ErrUnauthenticated)
	ErrBadCredentials      = fmt.Errorf("%w: incorrect email or password", common.ErrUnauthenticated)
	ErrEmailTaken          = fmt.Errorf("%w: email already registered", common.ErrConflict)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", common.ErrNotFound)
	errTokenStore          = errors.New("token store unavailable")
)
