// Package gemini implements integration with Google's Gemini API.
// It builds the genai client, the shared generation config and turns model
// responses into reply text.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/careconnector/gateway/internal/config"
)

// ErrBlocked is returned when the prompt or the reply was blocked by a safety filter.
var ErrBlocked = errors.New("blocked by safety filter")

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("model returned no content")

// ContentGenerator is the model call used by the conversation router.
// (*genai.Models) satisfies it; tests substitute stubs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGenerator creates a Gemini API client with the provided configuration.
func NewGenerator(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (ContentGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log.With("component", "gemini_client").Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return gi.Models, nil
}

// BaseContentConfig returns the generation settings shared by every request.
// Callers copy it before attaching a per-request system instruction.
func BaseContentConfig(cfg config.GeminiConfig) *genai.GenerateContentConfig {
	temperature := cfg.Temperature
	return &genai.GenerateContentConfig{
		Temperature: &temperature,

		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		},
	}
}

// WithSystemInstruction returns a shallow copy of base carrying instruction.
func WithSystemInstruction(base *genai.GenerateContentConfig, instruction string) *genai.GenerateContentConfig {
	copyCfg := *base
	copyCfg.SystemInstruction = &genai.Content{
		Parts: []*genai.Part{{Text: instruction}},
	}
	return &copyCfg
}

// ExtractText returns the reply text of resp or a descriptive error.
func ExtractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", fb.BlockReason)
		if fb.BlockReasonMessage != "" {
			reasonMsg = fb.BlockReasonMessage
		}
		return "", fmt.Errorf("%w: %s", ErrBlocked, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified &&
			resp.Candidates[0].FinishReason != genai.FinishReasonStop {
			if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
				return "", fmt.Errorf("%w: finish reason %v", ErrBlocked, resp.Candidates[0].FinishReason)
			}
			return "", fmt.Errorf("%w: finish reason %v", ErrEmptyResponse, resp.Candidates[0].FinishReason)
		}
		return "", ErrEmptyResponse
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}
