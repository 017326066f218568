package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/FrK06/web-rag-original/internal/auth"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/httpapi/middleware"
	"github.com/FrK06/web-rag-original/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var errNotAuthenticated = fmt.Errorf("%w: not authenticated", common.ErrUnauthenticated)

type registerReq struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginReq struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password" binding:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutReq struct {
	RefreshToken string `json:"refresh_token"`
}

type updatePasswordReq struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type tokenResp struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         *models.User `json:"user"`
}

func newTokenResp(pair *auth.TokenPair, u *models.User) tokenResp {
	return tokenResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		User:         u,
	}
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", common.ErrValidation, err)
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	u, pair, err := h.Accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, newTokenResp(pair, u))
}

// Login accepts the OAuth2 password-grant form (username, password) or JSON.
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	var err error
	if strings.HasPrefix(c.ContentType(), binding.MIMEJSON) {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBindWith(&req, binding.Form)
	}
	if err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	email := req.Username
	if email == "" {
		email = req.Email
	}
	if strings.TrimSpace(email) == "" {
		common.FailError(c, badRequest(fmt.Errorf("username is required")))
		return
	}

	u, pair, err := h.Accounts.Login(c.Request.Context(), email, req.Password)
	if err != nil {
		h.logFor(c).WithField("client_ip", middleware.ClientIP(c)).Info("auth: login refused")
		common.FailError(c, err)
		return
	}
	common.OK(c, newTokenResp(pair, u))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	pair, u, err := h.Tokens.Rotate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, newTokenResp(pair, u))
}

func (h *Handler) Logout(c *gin.Context) {
	var req logoutReq
	_ = c.ShouldBindJSON(&req) // body is optional

	claims, _ := middleware.Claims(c)
	h.Accounts.Logout(c.Request.Context(), claims, req.RefreshToken)
	common.OK(c, gin.H{"status": "success", "message": "Logged out successfully"})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	u, err := h.Accounts.Me(c.Request.Context(), uid)
	if err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"user": u})
}

func (h *Handler) UpdatePassword(c *gin.Context) {
	uid, ok := owner(c)
	if !ok {
		return
	}
	var req updatePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.FailError(c, badRequest(err))
		return
	}
	if err := h.Accounts.UpdatePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		common.FailError(c, err)
		return
	}
	common.OK(c, gin.H{"status": "success", "message": "Password updated successfully"})
}

// CSRFToken issues a fresh double-submit token as cookie and body.
func (h *Handler) CSRFToken(c *gin.Context) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		common.FailError(c, fmt.Errorf("%w: csrf token: %v", common.ErrInternal, err))
		return
	}
	token := hex.EncodeToString(b)

	name := h.Cfg.CSRFCookieName
	if name == "" {
		name = "csrf_token"
	}
	maxAge := int(h.Cfg.CSRFCookieTTL.Seconds())
	if maxAge <= 0 {
		maxAge = 3600
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, maxAge, "/", "", h.Cfg.CookieSecure, true)
	common.OK(c, gin.H{"csrf_token": token})
}
