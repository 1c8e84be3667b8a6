package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	jwtpkg "agenticflow/backend/internal/auth/jwt"
	"agenticflow/backend/internal/config"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	admin      config.AdminConfig // 管理账号引导凭据
	jwtManager *jwtpkg.Manager    // JWT 令牌管理器
	log        *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(admin config.AdminConfig, jwtManager *jwtpkg.Manager, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		admin:      admin,
		jwtManager: jwtManager,
		log:        log,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authResponse struct {
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Login 处理管理员登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if h.admin.PasswordHash == "" {
		h.log.Warn("login rejected: admin password hash not configured")
		Unauthorized(c, MsgInvalidCredentials)
		return
	}

	if req.Username != h.admin.Username {
		Unauthorized(c, MsgInvalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(req.Password)); err != nil {
		h.log.Warn("login failed",
			zap.String("username", req.Username),
			zap.String("ip", c.ClientIP()),
		)
		Unauthorized(c, MsgInvalidCredentials)
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(req.Username)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.log.Info("admin logged in",
		zap.String("username", req.Username),
		zap.String("ip", c.ClientIP()),
	)

	Success(c, authResponse{
		Username:     req.Username,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Refresh 使用刷新令牌换取新的访问令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		Unauthorized(c, MsgTokenInvalid)
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
	})
}

// Me 返回当前登录用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	username, _ := c.Get("username")
	Success(c, gin.H{
		"username": username,
	})
}
