// Package api provides the administrative HTTP surface: health, status, run
// history/export, settings, the kill-switch and maintenance toggles, and
// operator start/stop of scripts. This is ops tooling only — every start
// request arriving over HTTP is treated as operator-originated; the public
// principal reaches the engine only through the Notifier port, never HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/controlplane"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/engine"
	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/store"
)

// Server is the admin HTTP server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	store *store.Store
	cp    *controlplane.ControlPlane
	eng   *engine.Engine

	adminToken string
}

// NewServer builds a Server wired to the given collaborators. adminToken,
// when non-empty, is required as a Bearer token on every route except
// /health.
func NewServer(st *store.Store, cp *controlplane.ControlPlane, eng *engine.Engine, adminToken string) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), slogLogger())

	s := &Server{router: router, store: st, cp: cp, eng: eng, adminToken: adminToken}
	s.setupRoutes()
	return s
}

// slogLogger adapts gin's request logging to log/slog, matching the
// teacher's preference for structured logging over gin's default writer.
func slogLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	admin := s.router.Group("/", s.requireAdminToken)
	admin.GET("/status", s.statusHandler)
	admin.GET("/runs", s.listRunsHandler)
	admin.GET("/runs/export", s.exportRunsHandler)
	admin.GET("/settings", s.listSettingsHandler)
	admin.PUT("/settings/:key", s.updateSettingHandler)
	admin.POST("/control/kill-switch", s.setKillSwitchHandler)
	admin.POST("/control/maintenance", s.setMaintenanceHandler)
	admin.POST("/scripts/:key/start", s.startScriptHandler)
	admin.POST("/scripts/:key/stop", s.stopScriptHandler)
}

func (s *Server) requireAdminToken(c *gin.Context) {
	if s.adminToken == "" {
		c.Next()
		return
	}
	header := c.GetHeader("Authorization")
	if header != "Bearer "+s.adminToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

// Start runs the HTTP server on addr; it blocks until the server exits.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	slog.Info("admin http server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
