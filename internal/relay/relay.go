// Package relay forwards outbound emails to the email backend. The sender
// identity always comes from configuration; recipients come only from callers.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/careconnector/gateway/internal/config"
	apperrors "github.com/careconnector/gateway/internal/errors"
	"github.com/careconnector/gateway/internal/profile"
	"github.com/careconnector/gateway/internal/resilience"
	"github.com/careconnector/gateway/internal/text"
)

// maxResponseBytes caps how much of the backend reply is read.
const maxResponseBytes = 1 << 20

// ErrNotConfigured is wrapped by the ConfigError returned when no backend URL is set.
var ErrNotConfigured = errors.New("email relay is not configured")

// Email is a send request. To, Subject and Text are required.
type Email struct {
	To      string `validate:"required"`
	Subject string `validate:"required"`
	Text    string `validate:"required"`
	UserID  string
}

// payload is the body POSTed to the email backend.
type payload struct {
	AgentEmail     string `json:"agent_email"`
	RecipientEmail string `json:"recipientEmail"`
	Subject        string `json:"subject"`
	Text           string `json:"text"`
	Meta           *meta  `json:"meta,omitempty"`
}

type meta struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail,omitempty"`
}

// ProfileLookup resolves the sending user's own address for metadata.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string) (profile.Profile, bool)
}

// Relay posts emails to the configured backend.
type Relay struct {
	cfg      config.RelayConfig
	client   *http.Client
	profiles ProfileLookup
	breaker  *resilience.CircuitBreaker
	validate *validator.Validate
	log      *slog.Logger
}

// Option customizes a Relay.
type Option func(*Relay)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.client = c }
}

// WithBreaker guards backend calls with cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(r *Relay) { r.breaker = cb }
}

// New creates a Relay. profiles may be nil, in which case meta carries only the user id.
func New(cfg config.RelayConfig, profiles ProfileLookup, log *slog.Logger, opts ...Option) *Relay {
	if log == nil {
		log = slog.Default()
	}
	r := &Relay{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		profiles: profiles,
		validate: validator.New(),
		log:      log.With("component", "email_relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configured reports whether a backend URL is set.
func (r *Relay) Configured() bool {
	return strings.TrimSpace(r.cfg.BaseURL) != ""
}

// IsClientFailure reports whether err is an upstream 4xx, which is the
// caller's fault rather than the backend's.
func IsClientFailure(err error) bool {
	var upErr *apperrors.UpstreamError
	return errors.As(err, &upErr) && upErr.Status >= 400 && upErr.Status < 500
}

// Send normalizes and validates email, then forwards it once. On success it
// returns the backend's response body verbatim.
func (r *Relay) Send(ctx context.Context, email Email) ([]byte, error) {
	email.To = text.SingleLine(email.To)
	email.Subject = text.SingleLine(email.Subject)
	email.Text = text.Body(email.Text)
	if err := r.validate.Struct(email); err != nil {
		return nil, apperrors.NewValidationError("to, subject and text are required")
	}
	if !r.Configured() {
		return nil, apperrors.NewConfigError("relay base URL is empty", ErrNotConfigured)
	}

	body, err := json.Marshal(r.buildPayload(ctx, email))
	if err != nil {
		return nil, apperrors.NewRelayError("failed to encode relay request", err)
	}
	url := strings.TrimRight(r.cfg.BaseURL, "/") + r.cfg.SendPath

	log := r.log.With("user_id", email.UserID, "url", url)

	var respBody []byte
	call := func(ctx context.Context) error {
		respBody, err = r.post(ctx, url, body)
		return err
	}
	if r.breaker != nil {
		err = r.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		var upErr *apperrors.UpstreamError
		if errors.As(err, &upErr) {
			log.WarnContext(ctx, "Email backend rejected request", "status", upErr.Status)
			return nil, err
		}
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			log.InfoContext(ctx, "Caller went away before email was forwarded")
			return nil, apperrors.NewRelayError("request cancelled", err)
		}
		attrs := []any{"error", err}
		if r.breaker != nil {
			attrs = append(attrs, "breaker_state", r.breaker.State())
		}
		log.ErrorContext(ctx, "Email backend unreachable", attrs...)
		return nil, apperrors.NewRelayError("email backend unreachable", err)
	}

	log.InfoContext(ctx, "Email forwarded")
	return respBody, nil
}

func (r *Relay) buildPayload(ctx context.Context, email Email) payload {
	p := payload{
		AgentEmail:     r.cfg.SenderEmail,
		RecipientEmail: email.To,
		Subject:        email.Subject,
		Text:           email.Text,
	}
	if email.UserID != "" {
		m := &meta{UserID: email.UserID}
		if r.profiles != nil {
			if prof, ok := r.profiles.Lookup(ctx, email.UserID); ok {
				m.UserEmail = prof.Email
			}
		}
		p.Meta = m
	}
	return p
}

func (r *Relay) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewUpstreamError(resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
