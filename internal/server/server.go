// Package server assembles the gin engine and runs the HTTP listener.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/admin"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
)

const (
	retentionInterval = 24 * time.Hour
	shutdownTimeout   = 30 * time.Second
)

// Deps are the already-built components the server routes to.
type Deps struct {
	Contact *contact.Handler
	Admin   *admin.Admin // nil when the inbox is disabled
	Hasher  contact.IPHasher
	Logger  *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg    *config.Config
	router *gin.Engine
	admin  *admin.Admin
	logger *zap.Logger
}

func New(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(cfg.GinMode)
	// request logging goes through zap
	gin.DefaultWriter = io.Discard

	logger := deps.Logger.Named("http")
	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(logger, deps.Hasher))
	router.Use(Recovery(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.Any("/api/contact", deps.Contact.Submit)

	if deps.Admin != nil {
		deps.Admin.Register(router)
	}
	if cfg.StaticDir != "" {
		mountStatic(router, cfg.StaticDir)
	}

	return &Server{
		cfg:    cfg,
		router: router,
		admin:  deps.Admin,
		logger: logger,
	}
}

// mountStatic serves a pre-built site: index.html at / and the asset folders
// beside it.
func mountStatic(r *gin.Engine, dir string) {
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
		r.StaticFile("/", filepath.Join(dir, "index.html"))
	}
	for _, sub := range []string{"static", "images"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err == nil && info.IsDir() {
			r.Static("/"+sub, filepath.Join(dir, sub))
		}
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.NotifyTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.admin != nil {
		go s.admin.RunRetention(ctx, retentionInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	s.logger.Info("server exited")
	return nil
}
