package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/bot"
	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/GustavoLR548/news-relay-bot/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pipeline is the part of the controller the HTTP surface drives.
type Pipeline interface {
	Trigger() bool
	Running() bool
}

// StatsProvider returns run counters.
type StatsProvider interface {
	Snapshot() bot.StatsSnapshot
}

// Config configures a Server.
type Config struct {
	Addr string
	// AdminToken enables POST /run; empty disables it
	AdminToken string
	Pipeline   Pipeline
	Stats      StatsProvider
	// State is optional; GET /state answers 404 without it
	State storage.Snapshotter
	Log   *zap.SugaredLogger
}

// Server is the health, stats and manual trigger surface.
type Server struct {
	cfg    Config
	engine *gin.Engine
	http   *http.Server
	log    *zap.SugaredLogger
}

// New builds the router.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, log: logger.OrNop(cfg.Log)}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Bot is running!")
	})
	r.GET("/health", s.getHealth)
	r.GET("/stats", s.getStats)
	r.GET("/state", s.getState)
	r.POST("/run", s.postRun)

	s.engine = r
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Infof("HTTP server listening on %s", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Infow("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) getHealth(c *gin.Context) {
	running := false
	if s.cfg.Pipeline != nil {
		running = s.cfg.Pipeline.Running()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": running})
}

func (s *Server) getStats(c *gin.Context) {
	if s.cfg.Stats == nil {
		c.JSON(http.StatusOK, bot.StatsSnapshot{})
		return
	}
	c.JSON(http.StatusOK, s.cfg.Stats.Snapshot())
}

func (s *Server) getState(c *gin.Context) {
	if s.cfg.State == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "state inspection not available"})
		return
	}

	doc, err := s.cfg.State.Snapshot()
	if err != nil {
		s.log.Errorf("Failed to read state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read state"})
		return
	}
	if doc == nil {
		doc = storage.Document{}
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) postRun(c *gin.Context) {
	if s.cfg.AdminToken == "" || s.cfg.Pipeline == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "manual runs are disabled"})
		return
	}

	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if !s.cfg.Pipeline.Trigger() {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}

	s.log.Info("Manual run triggered")
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
