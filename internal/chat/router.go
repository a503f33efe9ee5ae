// Package chat routes a single conversation turn to the model backend.
// It validates the turn, maps roles, attaches the per-user system instruction
// and invokes the model exactly once.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	apperrors "github.com/careconnector/gateway/internal/errors"
	"github.com/careconnector/gateway/internal/gemini"
	"github.com/careconnector/gateway/internal/resilience"
)

// Role identifies the speaker of a conversation turn.
type Role int

const (
	RoleUnknown Role = iota
	RoleUser
	RoleAssistant
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// ParseRole converts a wire role name into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return RoleUnknown, fmt.Errorf("unsupported role %q", s)
	}
}

// toGenAIRole is the only place roles cross into the model backend's vocabulary.
func toGenAIRole(r Role) (genai.Role, error) {
	switch r {
	case RoleUser:
		return genai.RoleUser, nil
	case RoleAssistant:
		return genai.RoleModel, nil
	default:
		return "", fmt.Errorf("unsupported role %v", r)
	}
}

// Turn is one message of a conversation.
type Turn struct {
	Role    Role
	Content string
}

// Request is a single chat call. History is sent before Message, in order.
type Request struct {
	UserID    string
	Message   string
	History   []Turn
	ModelName string
}

// InstructionBuilder produces the system instruction for a user.
type InstructionBuilder interface {
	Build(ctx context.Context, userID string) string
}

// Router sends conversation turns to the model. It keeps no state between calls.
type Router struct {
	builder      InstructionBuilder
	generator    gemini.ContentGenerator
	breaker      *resilience.CircuitBreaker
	baseConfig   *genai.GenerateContentConfig
	defaultModel string
	timeout      time.Duration
	log          *slog.Logger
}

// Options configures a Router.
type Options struct {
	Builder      InstructionBuilder
	Generator    gemini.ContentGenerator
	Breaker      *resilience.CircuitBreaker
	BaseConfig   *genai.GenerateContentConfig
	DefaultModel string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// NewRouter creates a Router. Breaker and BaseConfig are optional.
func NewRouter(opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	baseConfig := opts.BaseConfig
	if baseConfig == nil {
		baseConfig = &genai.GenerateContentConfig{}
	}
	return &Router{
		builder:      opts.Builder,
		generator:    opts.Generator,
		breaker:      opts.Breaker,
		baseConfig:   baseConfig,
		defaultModel: opts.DefaultModel,
		timeout:      opts.Timeout,
		log:          log.With("component", "chat_router"),
	}
}

// Route validates req, invokes the model once and returns the reply text.
// Invalid input yields a ValidationError; any backend failure a GenerationError.
func (r *Router) Route(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", apperrors.NewValidationError("message must be a non-empty string")
	}

	contents, err := buildContents(req.History, req.Message)
	if err != nil {
		return "", err
	}

	instruction := r.builder.Build(ctx, req.UserID)
	genConfig := gemini.WithSystemInstruction(r.baseConfig, instruction)

	model := strings.TrimSpace(req.ModelName)
	if model == "" {
		model = r.defaultModel
	}

	log := r.log.With("user_id", req.UserID, "model", model, "history_turns", len(req.History))
	log.DebugContext(ctx, "Sending conversation to model")

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var reply string
	call := func(ctx context.Context) error {
		resp, err := r.generator.GenerateContent(ctx, model, contents, genConfig)
		if err != nil {
			return err
		}
		reply, err = gemini.ExtractText(resp)
		return err
	}

	start := time.Now()
	if r.breaker != nil {
		err = r.breaker.Execute(callCtx, call)
	} else {
		err = call(callCtx)
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			log.InfoContext(ctx, "Caller went away before model reply", "duration", time.Since(start))
			return "", apperrors.NewGenerationError("request cancelled", err)
		}
		attrs := []any{"error", err, "duration", time.Since(start)}
		if r.breaker != nil {
			attrs = append(attrs, "breaker_state", r.breaker.State())
		}
		log.ErrorContext(ctx, "Model call failed", attrs...)
		return "", apperrors.NewGenerationError("model call failed", err)
	}

	log.InfoContext(ctx, "Model reply received", "duration", time.Since(start), "reply_length", len(reply))
	return reply, nil
}

// buildContents maps history then the new message into model contents,
// preserving caller order.
func buildContents(history []Turn, message string) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for i, turn := range history {
		role, err := toGenAIRole(turn.Role)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("history[%d]: %v", i, err))
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))
	return contents, nil
}
