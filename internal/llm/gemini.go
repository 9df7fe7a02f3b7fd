package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nutrition-bot/internal/config"
	"nutrition-bot/internal/retry"
	"nutrition-bot/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiAgent = "gemini_vision"

// GeminiAnalyzer asks a Gemini model for a structured description of a food photo.
type GeminiAnalyzer struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	policy    retry.Policy
}

// NewGeminiAnalyzer creates a new Gemini vision client.
func NewGeminiAnalyzer(ctx context.Context, cfg *config.Config) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.GeminiModel)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)
	model.SetMaxOutputTokens(1000)

	return &GeminiAnalyzer{
		client:    client,
		model:     model,
		modelName: cfg.GeminiModel,
		policy:    retry.WithAttempts(cfg.RetryMaxAttempts),
	}, nil
}

// Analyze sends the photo together with the vision prompt and parses the JSON reply.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) (Analysis, error) {
	start := time.Now()
	format := strings.TrimPrefix(mimeType, "image/")

	var resp *genai.GenerateContentResponse
	err := retry.Do(ctx, a.policy, geminiAgent, func(ctx context.Context) error {
		var err error
		resp, err = a.model.GenerateContent(ctx, genai.ImageData(format, image), genai.Text(visionPrompt))
		return err
	})
	if err != nil {
		failed := shared.Track(geminiAgent, start, shared.TokenUsage{Model: a.modelName}, err)
		return Analysis{Meta: failed}, fmt.Errorf("failed to generate content: %w", err)
	}

	usage := shared.TokenUsage{Model: a.modelName}
	if um := resp.UsageMetadata; um != nil {
		usage.PromptTokens = int(um.PromptTokenCount)
		usage.CompletionTokens = int(um.CandidatesTokenCount)
		usage.TotalTokens = int(um.TotalTokenCount)
	}

	text, err := responseText(resp)
	if err != nil {
		return Analysis{Meta: shared.Track(geminiAgent, start, usage, err)}, err
	}

	analysis, err := ParseAnalysis(text)
	analysis.Meta = shared.Track(geminiAgent, start, usage, err)
	return analysis, err
}

// Close closes the underlying Gemini client.
func (a *GeminiAnalyzer) Close() error {
	return a.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("generated content is not text")
	}
	return b.String(), nil
}
