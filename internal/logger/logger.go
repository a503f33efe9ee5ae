// Package logger provides structured logging for the gateway.
// It uses Go's slog package with configurable levels and formats.
package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// NewLogger creates a new slog Logger with the specified level and format.
// If jsonOutput is true, logs will be formatted as JSON, otherwise as text.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Middleware creates a request logging middleware for the gin engine.
// It assigns a request id, logs the start and the end of every request and
// stores a request-scoped logger under the "logger" key.
func Middleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		logEntry := log.With(
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		if route := c.FullPath(); route != "" {
			logEntry = logEntry.With("route", route)
		}
		c.Set("logger", logEntry)

		logEntry.DebugContext(c.Request.Context(), "Processing request", "remote_addr", c.ClientIP())

		c.Next()

		status := c.Writer.Status()
		attrs := []any{"status", status, "duration", time.Since(startTime), "bytes", c.Writer.Size()}
		switch {
		case status >= 500:
			logEntry.ErrorContext(c.Request.Context(), "Finished processing request", attrs...)
		case status >= 400:
			logEntry.WarnContext(c.Request.Context(), "Finished processing request", attrs...)
		default:
			logEntry.InfoContext(c.Request.Context(), "Finished processing request", attrs...)
		}
	}
}

// FromContext returns the request-scoped logger set by Middleware, or fallback.
func FromContext(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return fallback
}
