// Package server exposes the gateway's HTTP API on a gin engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/careconnector/gateway/internal/chat"
	"github.com/careconnector/gateway/internal/config"
	"github.com/careconnector/gateway/internal/logger"
	"github.com/careconnector/gateway/internal/profile"
	"github.com/careconnector/gateway/internal/relay"
)

// ProfileLookup resolves profiles for the profile endpoint.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string) (profile.Profile, bool)
}

// ChatRouter answers a conversation turn.
type ChatRouter interface {
	Route(ctx context.Context, req chat.Request) (string, error)
}

// Mailer forwards outbound email.
type Mailer interface {
	Send(ctx context.Context, email relay.Email) ([]byte, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components behind the HTTP handlers.
type Deps struct {
	Profiles ProfileLookup
	Chat     ChatRouter
	Mailer   Mailer
	Store    Pinger
}

// Server owns the gin engine and the HTTP listener.
type Server struct {
	cfg           config.ServerConfig
	defaultUserID string
	deps          Deps
	log           *slog.Logger
	engine        *gin.Engine
	httpServer    *http.Server
	now           func() time.Time
}

// New builds the engine and registers all routes.
func New(cfg *config.Config, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:           cfg.Server,
		defaultUserID: cfg.Gateway.DefaultUserID,
		deps:          deps,
		log:           log.With("component", "http_server"),
		now:           time.Now,
	}

	engine := gin.New()
	engine.Use(
		gin.CustomRecovery(s.recover),
		logger.Middleware(s.log),
		limitBodySize(cfg.Server.MaxBodyBytes),
		cors.New(corsConfig(cfg.Server.CORSOrigins)),
	)

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/ready", s.handleReady)
	api.GET("/profile", s.handleProfile)
	api.GET("/profile/:userId", s.handleProfile)
	api.POST("/chat", s.handleChat)
	api.POST("/send-email", s.handleSendEmail)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	s.engine = engine
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", ln.Addr().String(), "service", s.cfg.ServiceName)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received, stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.log.Info("HTTP server stopped.")
	return nil
}

func (s *Server) recover(c *gin.Context, recovered any) {
	logger.FromContext(c, s.log).ErrorContext(c.Request.Context(), "Recovered from panic", "panic", recovered)
	writeInternalError(c)
}

// corsConfig allows every origin when origins is empty or contains "*".
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders: []string{logger.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
