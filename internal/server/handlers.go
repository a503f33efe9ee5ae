package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careconnector/gateway/internal/chat"
	apperrors "github.com/careconnector/gateway/internal/errors"
	"github.com/careconnector/gateway/internal/logger"
	"github.com/careconnector/gateway/internal/relay"
)

const readyTimeout = 2 * time.Second

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message   json.RawMessage `json:"message"`
	History   []historyTurn   `json:"history"`
	UserID    string          `json:"userId"`
	ModelName string          `json:"modelName"`
}

type sendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	UserID  string `json:"userId"`
}

func (s *Server) userIDOrDefault(userID string) string {
	if id := strings.TrimSpace(userID); id != "" {
		return id
	}
	return s.defaultUserID
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"service": s.cfg.ServiceName,
		"time":    s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.deps.Store == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		logger.FromContext(c, s.log).WarnContext(ctx, "Readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not_ready", "details": "profile store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleProfile(c *gin.Context) {
	userID := s.userIDOrDefault(c.Param("userId"))
	p, found := s.deps.Profiles.Lookup(c.Request.Context(), userID)

	logger.FromContext(c, s.log).DebugContext(c.Request.Context(), "Profile requested", "user_id", userID, "found", found)
	c.JSON(http.StatusOK, gin.H{"userId": userID, "profile": p})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": "request body must be a JSON object"})
		return
	}

	var message string
	if len(req.Message) == 0 || json.Unmarshal(req.Message, &message) != nil || strings.TrimSpace(message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_message", "details": "message must be a non-empty string"})
		return
	}

	history := make([]chat.Turn, 0, len(req.History))
	for i, turn := range req.History {
		role, err := chat.ParseRole(turn.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_history", "details": fmt.Sprintf("history[%d]: %v", i, err)})
			return
		}
		history = append(history, chat.Turn{Role: role, Content: turn.Content})
	}

	reply, err := s.deps.Chat.Route(c.Request.Context(), chat.Request{
		UserID:    s.userIDOrDefault(req.UserID),
		Message:   message,
		History:   history,
		ModelName: req.ModelName,
	})
	if err != nil {
		s.writeChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": reply})
}

func (s *Server) writeChatError(c *gin.Context, err error) {
	switch apperrors.Code(err) {
	case apperrors.CodeValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_message", "details": err.Error()})
	case apperrors.CodeGeneration:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat_failed", "details": err.Error()})
	default:
		logger.FromContext(c, s.log).ErrorContext(c.Request.Context(), "Unexpected chat error", "error", err)
		writeInternalError(c)
	}
}

func (s *Server) handleSendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(c, err) {
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields", "details": "to, subject and text are required"})
		return
	}

	body, err := s.deps.Mailer.Send(c.Request.Context(), relay.Email{
		To:      req.To,
		Subject: req.Subject,
		Text:    req.Text,
		UserID:  s.userIDOrDefault(req.UserID),
	})
	if err != nil {
		s.writeRelayError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "forwarded": forwardedBody(body)})
}

func (s *Server) writeRelayError(c *gin.Context, err error) {
	var upErr *apperrors.UpstreamError
	switch {
	case apperrors.Code(err) == apperrors.CodeValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields", "details": "to, subject and text are required"})
	case apperrors.Code(err) == apperrors.CodeConfig:
		c.JSON(http.StatusBadRequest, gin.H{"error": "relay_not_configured", "details": "email relay base URL is not set"})
	case errors.As(err, &upErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "relay_failed",
			"details": upErr.Message(),
			"status":  upErr.Status,
			"body":    upErr.Body,
		})
	case apperrors.Code(err) == apperrors.CodeRelay:
		c.JSON(http.StatusBadGateway, gin.H{"error": "relay_failed", "details": "email backend unreachable"})
	default:
		logger.FromContext(c, s.log).ErrorContext(c.Request.Context(), "Unexpected relay error", "error", err)
		writeInternalError(c)
	}
}

// tooLarge answers 413 when err came from the body size limit.
func tooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return false
	}
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error":   "payload_too_large",
		"details": fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
	})
	return true
}

// forwardedBody embeds a JSON reply as-is and anything else as a string.
func forwardedBody(body []byte) any {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func writeInternalError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": "unexpected error"})
}
