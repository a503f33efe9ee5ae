package gemini_test

import (
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/careconnector/gateway/internal/config"
	"github.com/careconnector/gateway/internal/gemini"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr error
	}{
		{
			name: "plain reply",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content:      genai.NewContentFromText("Try resting in a dark room.", genai.RoleModel),
				FinishReason: genai.FinishReasonStop,
			}}},
			want: "Try resting in a dark room.",
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: gemini.ErrEmptyResponse,
		},
		{
			name: "prompt blocked",
			resp: &genai.GenerateContentResponse{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
				BlockReason:        genai.BlockedReasonSafety,
				BlockReasonMessage: "unsafe",
			}},
			wantErr: gemini.ErrBlocked,
		},
		{
			name: "prompt feedback without block reason",
			resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{},
				Candidates: []*genai.Candidate{{
					Content:      genai.NewContentFromText("Try acetaminophen.", genai.RoleModel),
					FinishReason: genai.FinishReasonStop,
				}},
			},
			want: "Try acetaminophen.",
		},
		{
			name: "prompt feedback with unspecified reason",
			resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonUnspecified},
				Candidates: []*genai.Candidate{{
					Content:      genai.NewContentFromText("Drink water.", genai.RoleModel),
					FinishReason: genai.FinishReasonStop,
				}},
			},
			want: "Drink water.",
		},
		{
			name:    "no candidates",
			resp:    &genai.GenerateContentResponse{},
			wantErr: gemini.ErrEmptyResponse,
		},
		{
			name: "candidate stopped for safety",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonSafety,
			}}},
			wantErr: gemini.ErrBlocked,
		},
		{
			name: "candidate hit max tokens without content",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonMaxTokens,
			}}},
			wantErr: gemini.ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := gemini.ExtractText(tt.resp)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ExtractText() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractText() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithSystemInstructionDoesNotMutateBase(t *testing.T) {
	t.Parallel()

	base := gemini.BaseContentConfig(config.GeminiConfig{Temperature: 0.4})
	a := gemini.WithSystemInstruction(base, "for alice")
	b := gemini.WithSystemInstruction(base, "for bob")

	if base.SystemInstruction != nil {
		t.Fatalf("base config was mutated: %+v", base.SystemInstruction)
	}
	if a.SystemInstruction.Parts[0].Text != "for alice" || b.SystemInstruction.Parts[0].Text != "for bob" {
		t.Errorf("instructions crossed: a=%q b=%q", a.SystemInstruction.Parts[0].Text, b.SystemInstruction.Parts[0].Text)
	}
	if *a.Temperature != 0.4 {
		t.Errorf("temperature = %v, want 0.4", *a.Temperature)
	}
}
