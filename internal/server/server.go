// Package server exposes the liveness and diagnostic endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	KeepaliveBody  = "🚀 Crypto News Bot Active"
	requestTimeout = 30 * time.Second
)

type TestSender interface {
	SendTest(ctx context.Context) error
}

type StorePinger interface {
	Ping(ctx context.Context) error
}

// Stats is the metrics view. *metrics.Metrics satisfies it.
type Stats interface {
	Healthy() bool
	GetStats() map[string]interface{}
}

type Server struct {
	sender TestSender
	store  StorePinger
	stats  Stats
	log    *slog.Logger
}

func New(sender TestSender, store StorePinger, stats Stats, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{sender: sender, store: store, stats: stats, log: log}
}

// Router builds a gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/keepalive", s.keepalive)
	r.GET("/testpost", s.testPost)
	r.GET("/testredis", s.testStore)
	r.GET("/testcache", s.testStore)
	r.GET("/health", s.health)
	r.GET("/metrics", s.metrics)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) keepalive(c *gin.Context) {
	c.String(http.StatusOK, KeepaliveBody)
}

func (s *Server) testPost(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.sender.SendTest(ctx); err != nil {
		s.log.Error("test post failed", "err", err)
		c.String(http.StatusInternalServerError, "Test post failed: "+err.Error())
		return
	}
	c.String(http.StatusOK, "Test post succeeded")
}

func (s *Server) testStore(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("store ping failed", "err", err)
		c.String(http.StatusInternalServerError, "Redis connection failed: "+err.Error())
		return
	}
	c.String(http.StatusOK, "Redis connected")
}

func (s *Server) health(c *gin.Context) {
	stats := s.stats.GetStats()

	status, code := "ok", http.StatusOK
	if !s.stats.Healthy() {
		status, code = "error", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"last_cycle": stats["last_cycle_time"],
		"last_error": stats["last_error"],
	})
}

func (s *Server) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.GetStats())
}
