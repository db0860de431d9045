// Package admin serves the owner-only inbox review API.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/inbox"
	"github.com/Zachkp/portfolio/internal/privacy"
)

const (
	cookieName      = "admin_token"
	cookiePath      = "/admin"
	sessionDuration = 24 * time.Hour
	devPassword     = "admin123"
)

// IPHasher hides client addresses in audit lines.
type IPHasher interface {
	HashIP(ip string) string
}

type Admin struct {
	store        *inbox.Store
	hasher       IPHasher
	logger       *zap.Logger
	username     string
	passwordHash []byte
	secret       []byte
	retention    time.Duration
	secure       bool
	now          func() time.Time
}

type Options struct {
	Production bool
	Retention  time.Duration
	Now        func() time.Time
}

// New prepares the admin area. Without a configured password it falls back to
// a development default, which config validation forbids in production.
func New(cfg config.AdminConfig, store *inbox.Store, hasher IPHasher, logger *zap.Logger, opts Options) (*Admin, error) {
	logger = logger.Named("admin")

	var hash []byte
	switch {
	case cfg.PasswordHash != "":
		hash = []byte(cfg.PasswordHash)
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
	case cfg.Password != "":
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		hash = h
	default:
		if opts.Production {
			return nil, errors.New("admin password is not configured")
		}
		logger.Warn("using default admin password; set ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
		h, err := bcrypt.GenerateFromPassword([]byte(devPassword), bcrypt.MinCost)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		// sessions won't survive a restart
		token, err := privacy.RandomToken(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate admin secret: %w", err)
		}
		secret = []byte(token)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}

	return &Admin{
		store:        store,
		hasher:       hasher,
		logger:       logger,
		username:     cfg.Username,
		passwordHash: hash,
		secret:       secret,
		retention:    retention,
		secure:       opts.Production,
		now:          now,
	}, nil
}

// Register mounts the login endpoints and the protected API.
func (a *Admin) Register(r gin.IRouter) {
	r.POST("/admin/login", a.login)
	r.POST("/admin/logout", a.logout)

	group := r.Group("/admin")
	group.Use(a.requireSession())
	group.GET("/api/stats", a.stats)
	group.GET("/api/messages", a.listMessages)
	group.POST("/api/messages/:id/ack", a.acknowledge)
	group.DELETE("/api/messages/:id", a.deleteMessage)
	group.POST("/api/privacy/purge", a.purge)
	group.GET("/export/messages", a.export)
}

type credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (a *Admin) login(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBind(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(creds.Password))
	if !userOK || passErr != nil {
		a.logger.Warn("failed admin login", zap.String("client", a.hasher.HashIP(c.ClientIP())))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := a.issueToken()
	if err != nil {
		a.logger.Error("failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cookieName, token, int(sessionDuration.Seconds()), cookiePath, "", a.secure, true)
	a.logger.Info("admin login", zap.String("client", a.hasher.HashIP(c.ClientIP())))
	c.JSON(http.StatusOK, gin.H{"message": "Logged in"})
}

func (a *Admin) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cookieName, "", -1, cookiePath, "", a.secure, true)
	a.logger.Info("admin logout", zap.String("client", a.hasher.HashIP(c.ClientIP())))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (a *Admin) issueToken() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   a.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionDuration)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Admin) verifyToken(raw string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithSubject(a.username))
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

func (a *Admin) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(cookieName)
		if err != nil || a.verifyToken(raw) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (a *Admin) stats(c *gin.Context) {
	st, err := a.store.Stats(c.Request.Context(), a.now())
	if err != nil {
		a.logger.Error("failed to load inbox stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *Admin) listMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := a.store.List(c.Request.Context(), inbox.ListOptions{
		Limit:              limit,
		UnacknowledgedOnly: c.Query("pending") == "true",
	})
	if err != nil {
		a.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (a *Admin) acknowledge(c *gin.Context) {
	id := c.Param("id")
	if err := a.store.Acknowledge(c.Request.Context(), id); err != nil {
		a.storeError(c, err, "Failed to acknowledge message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message acknowledged"})
}

func (a *Admin) deleteMessage(c *gin.Context) {
	id := c.Param("id")
	if err := a.store.Delete(c.Request.Context(), id); err != nil {
		a.storeError(c, err, "Failed to delete message")
		return
	}
	a.logger.Info("message deleted", zap.String("id", id), zap.String("client", a.hasher.HashIP(c.ClientIP())))
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}

func (a *Admin) purge(c *gin.Context) {
	n, err := a.PurgeExpired(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup complete", "purged": n})
}

func (a *Admin) export(c *gin.Context) {
	msgs, err := a.store.List(c.Request.Context(), inbox.ListOptions{Limit: 500})
	if err != nil {
		a.logger.Error("failed to export messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export messages"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=contact-messages.json")
	a.logger.Info("messages exported", zap.Int("count", len(msgs)), zap.String("client", a.hasher.HashIP(c.ClientIP())))
	c.JSON(http.StatusOK, gin.H{"exported_at": a.now().UTC(), "messages": msgs})
}

func (a *Admin) storeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, inbox.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	a.logger.Error(msg, zap.String("id", c.Param("id")), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// PurgeExpired deletes messages older than the retention window.
func (a *Admin) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := a.store.Purge(ctx, a.now().Add(-a.retention))
	if err != nil {
		a.logger.Error("error cleaning up old messages", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		a.logger.Info("privacy cleanup removed old messages", zap.Int64("count", n), zap.Duration("retention", a.retention))
	}
	return n, nil
}

// RunRetention purges once immediately and then every interval until ctx ends.
func (a *Admin) RunRetention(ctx context.Context, interval time.Duration) {
	_, _ = a.PurgeExpired(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = a.PurgeExpired(ctx)
		}
	}
}
