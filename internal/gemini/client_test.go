package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/kapu/formsmith-server-go/internal/config"
)

func TestIsGemini(t *testing.T) {
	if !isGemini("gemini-2.5-flash") {
		t.Fatalf("expected gemini match")
	}
	if isGemini("gpt-4o") {
		t.Fatalf("did not expect non-gemini match")
	}
}

func TestExtractUsage(t *testing.T) {
	response := &genai.GenerateContentResponse{
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 20,
			TotalTokenCount:      30,
		},
	}
	usage := extractUsage(response)
	if usage.InputTokens != 10 {
		t.Fatalf("unexpected input tokens: %d", usage.InputTokens)
	}
	if usage.OutputTokens != 20 {
		t.Fatalf("unexpected output tokens: %d", usage.OutputTokens)
	}
	if usage.TotalTokens != 30 {
		t.Fatalf("unexpected total tokens: %d", usage.TotalTokens)
	}

	if extracted := extractUsage(nil); extracted.TotalTokens != 0 {
		t.Fatalf("expected zero usage for nil response")
	}
}

func TestResolveModel(t *testing.T) {
	cfg := &config.Config{
		Gemini: config.GeminiConfig{
			DefaultModel: "gemini-2.5-flash",
			InsightModel: "gemini-2.5-pro",
		},
	}
	client := &Client{cfg: cfg}

	model, err := client.resolveModel("", "insight")
	if err != nil || model != "gemini-2.5-pro" {
		t.Fatalf("expected insight model, got model=%s err=%v", model, err)
	}

	model, err = client.resolveModel("", "translate")
	if err != nil || model != "gemini-2.5-flash" {
		t.Fatalf("expected default model, got model=%s err=%v", model, err)
	}

	model, err = client.resolveModel("gemini-override", "")
	if err != nil || model != "gemini-override" {
		t.Fatalf("expected override model, got model=%s err=%v", model, err)
	}

	if _, err = client.resolveModel("llama3", ""); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected invalid model error, got %v", err)
	}
}

func TestSelectClientRequiresKey(t *testing.T) {
	client := &Client{cfg: &config.Config{}, clients: map[string]*genai.Client{}}
	if _, err := client.selectClient(context.Background()); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
