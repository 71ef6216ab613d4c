package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/session"
)

const (
	refreshTokenCookieName         = "refresh_token"
	refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"
	oauthStateKeyPrefix            = "oauth:state:"
)

// Accounts 读写带密码的身份资料。
type Accounts interface {
	Create(ctx context.Context, p database.Profile) error
	Get(ctx context.Context, id string) (database.Profile, error)
	GetByEmail(ctx context.Context, email string) (database.Profile, error)
}

// SessionOptions 控制登录限流与 Cookie。
type SessionOptions struct {
	LoginRatePerHour   int
	LoginLockThreshold int
	LoginLockTTL       time.Duration
	OAuthStateTTL      time.Duration
	CookieDomain       string
}

// SessionHandler 处理登录、注册、刷新、退出与 Google 登录回调。
// 登录成功后身份写入当前设备的工作区。
type SessionHandler struct {
	accounts    Accounts
	authService *auth.AuthService
	redis       sessionRedis
	opts        SessionOptions
}

func NewSessionHandler(accounts Accounts, authService *auth.AuthService, redisClient sessionRedis, opts SessionOptions) *SessionHandler {
	if opts.LoginRatePerHour <= 0 {
		opts.LoginRatePerHour = 10
	}
	if opts.LoginLockThreshold <= 0 {
		opts.LoginLockThreshold = 5
	}
	if opts.LoginLockTTL <= 0 {
		opts.LoginLockTTL = 15 * time.Minute
	}
	if opts.OAuthStateTTL <= 0 {
		opts.OAuthStateTTL = 10 * time.Minute
	}
	return &SessionHandler{accounts: accounts, authService: authService, redis: redisClient, opts: opts}
}

type sessionResponse struct {
	SignedIn bool              `json:"signed_in"`
	Identity *session.Identity `json:"identity,omitempty"`
}

type tokenResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int              `json:"expires_in"`
	Identity    session.Identity `json:"identity"`
}

// Current 返回工作区的当前身份。
func (h *SessionHandler) Current(c *gin.Context) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	identity, signedIn := ws.Session.Current()
	resp := sessionResponse{SignedIn: signedIn}
	if signedIn {
		resp.Identity = &identity
	}
	c.JSON(http.StatusOK, resp)
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Name     string `json:"name" binding:"max=128"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// Register 创建密码身份并直接登录。
func (h *SessionHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := normalizeEmail(req.Email)
	logger := middleware.LoggerFromContext(c).With(slog.String("email", email))

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	profile := database.Profile{
		ID:           auth.NewIdentityID(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hashed,
	}
	if err := h.accounts.Create(ctx, profile); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			logger.Info("register conflict: email already registered")
			Conflict(c, "email already registered")
			return
		}
		logger.Error("create profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("profile registered", slog.String("identity_id", profile.ID))
	h.signIn(c, session.Identity{ID: profile.ID, Email: profile.Email, Name: profile.Name}, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验口令，按 IP+邮箱限流，连续失败后临时锁定。
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	email := normalizeEmail(req.Email)
	logger := middleware.LoggerFromContext(c).With(slog.String("email", email))

	rateKey := "rate:login:" + c.ClientIP() + ":" + email + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		logger.Warn("login rate counter unavailable", slog.Any("error", err))
		count = 0
	}
	if count > int64(h.opts.LoginRatePerHour) {
		Error(c, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if ttl, _ := h.redis.TTL(ctx, "lock:login:"+email).Result(); ttl > 0 {
		Error(c, http.StatusTooManyRequests, "account temporarily locked")
		return
	}

	profile, err := h.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			logger.Info("login failed: profile not found")
			h.recordLoginFailure(ctx, email)
			Unauthorized(c)
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !auth.CheckPasswordHash(req.Password, profile.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.String("identity_id", profile.ID))
		h.recordLoginFailure(ctx, email)
		Unauthorized(c)
		return
	}

	_ = h.redis.Del(ctx, "lock:login:fail:"+email).Err()
	h.signIn(c, session.Identity{ID: profile.ID, Email: profile.Email, Name: profile.Name}, http.StatusOK)
}

// GoogleStart 生成一次性 state 并跳转到 Google 授权页。
func (h *SessionHandler) GoogleStart(c *gin.Context) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	state := uuid.NewString()
	url, err := ws.Session.Begin(state)
	if err != nil {
		if errors.Is(err, session.ErrProviderUnavailable) {
			NotFound(c, "google sign-in is not configured")
			return
		}
		logger.Error("begin google sign-in failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// state 绑定到发起登录的设备，回调时校验。
	if err := h.redis.Set(ctx, oauthStateKeyPrefix+state, ws.DeviceID, h.opts.OAuthStateTTL).Err(); err != nil {
		logger.Error("store oauth state failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback 校验 state，换取身份并登录。
func (h *SessionHandler) GoogleCallback(c *gin.Context) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	if reason := c.Query("error"); reason != "" {
		logger.Info("google sign-in cancelled", slog.String("reason", reason))
		Unauthorized(c)
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		BadRequest(c, "missing state or code")
		return
	}

	owner, err := h.redis.GetDel(ctx, oauthStateKeyPrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logger.Info("oauth state unknown or expired")
			Unauthorized(c)
			return
		}
		logger.Error("oauth state lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if owner != ws.DeviceID {
		logger.Warn("oauth state issued to another device")
		Unauthorized(c)
		return
	}

	identity, err := ws.Session.Complete(ctx, code)
	if err != nil {
		logger.Error("complete google sign-in failed", slog.Any("error", err))
		BadGateway(c, "google sign-in failed")
		return
	}
	h.replyWithTokenPair(c, identity, http.StatusOK)
}

// Restore 用 Authorization 中的访问令牌恢复工作区身份。
func (h *SessionHandler) Restore(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		AbortUnauthorized(c)
		return
	}
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	identity, err := ws.Session.Restore(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			Unauthorized(c)
			return
		}
		middleware.LoggerFromContext(c).Error("restore session failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, sessionResponse{SignedIn: true, Identity: &identity})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并轮换，旧令牌加入黑名单。
func (h *SessionHandler) Refresh(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		Unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	claims, err := h.authService.ParseToken(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	profile, err := h.accounts.Get(ctx, claims.IdentityID())
	if err != nil {
		logger.Info("refresh profile not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	identity := session.Identity{ID: profile.ID, Email: profile.Email, Name: profile.Name}
	// 工作区被回收后身份会丢失，刷新时顺带恢复。
	if ws, ok := middleware.GetWorkspace(c); ok {
		if current, signedIn := ws.Session.Current(); !signedIn || current.ID != identity.ID {
			if err := ws.Session.Establish(ctx, identity); err != nil {
				logger.Error("refresh establish identity failed", slog.Any("error", err))
				Internal(c, "internal error")
				return
			}
		}
	}
	h.replyWithTokenPair(c, identity, http.StatusOK)
}

// Logout 吊销刷新令牌、清除 Cookie，并让工作区退出登录。
func (h *SessionHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	if refreshToken := h.extractRefreshToken(c); refreshToken != "" {
		claims, err := h.authService.ParseToken(refreshToken, auth.TokenTypeRefresh)
		if err == nil {
			key := refreshTokenBlacklistKeyPrefix + claims.ID
			if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
				logger.Error("logout revoke token failed", slog.Any("error", err))
				Internal(c, "internal error")
				return
			}
		} else {
			logger.Info("logout with invalid refresh token", slog.Any("error", err))
		}
	}

	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	ws.Session.SignOut()

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   middleware.IsHTTPS(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.opts.CookieDomain),
	})
	c.JSON(http.StatusOK, sessionResponse{SignedIn: false})
}

// signIn 把身份写入工作区并签发令牌。
func (h *SessionHandler) signIn(c *gin.Context, identity session.Identity, status int) {
	ws, ok := workspaceFrom(c)
	if !ok {
		return
	}
	if err := ws.Session.Establish(c.Request.Context(), identity); err != nil {
		middleware.LoggerFromContext(c).Error("establish identity failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.replyWithTokenPair(c, identity, status)
}

func (h *SessionHandler) replyWithTokenPair(c *gin.Context, identity session.Identity, status int) {
	pair, err := h.authService.GenerateTokenPair(identity.ID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(status, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
		Identity:    identity,
	})
}

func (h *SessionHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *SessionHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	ttl := h.authService.RefreshTokenTTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   int(ttl.Seconds()),
		Path:     "/",
		Secure:   middleware.IsHTTPS(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.opts.CookieDomain),
		Expires:  time.Now().Add(ttl),
	})
}

func (h *SessionHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	ttl := h.authService.RefreshTokenTTL()
	if expiresAt != nil {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *SessionHandler) recordLoginFailure(ctx context.Context, email string) {
	count, err := incrWithTTL(ctx, h.redis, "lock:login:fail:"+email, h.opts.LoginLockTTL)
	if err != nil {
		return
	}
	if count >= int64(h.opts.LoginLockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+email, "1", h.opts.LoginLockTTL).Err()
	}
}

func bearerToken(c *gin.Context) string {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
