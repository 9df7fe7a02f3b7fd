package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nutrition-bot/internal/config"
	"nutrition-bot/internal/retry"
	"nutrition-bot/internal/shared"
)

const openAIAgent = "openai_vision"

// OpenAIAnalyzer talks to any OpenAI-compatible chat completions endpoint that
// accepts image_url content parts (Groq, AITunnel, OpenAI).
type OpenAIAnalyzer struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	policy     retry.Policy
}

// NewOpenAIAnalyzer creates a new chat-completions vision client.
func NewOpenAIAnalyzer(cfg *config.Config) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		url:    cfg.OpenAICompatURL,
		apiKey: cfg.OpenAICompatKey,
		model:  cfg.OpenAICompatModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		policy: retry.WithAttempts(cfg.RetryMaxAttempts),
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Analyze sends the photo as a data URL and parses the JSON reply.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) (Analysis, error) {
	start := time.Now()

	reqBody := map[string]interface{}{
		"model": a.model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": visionPrompt},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url":    "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image),
							"detail": "high",
						},
					},
				},
			},
		},
		"max_tokens":      1000,
		"temperature":     0.2,
		"response_format": map[string]string{"type": "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var chatResp chatResponse
	err = retry.Do(ctx, a.policy, openAIAgent, func(ctx context.Context) error {
		return a.send(ctx, jsonBody, &chatResp)
	})
	if err != nil {
		return Analysis{Meta: shared.Track(openAIAgent, start, shared.TokenUsage{Model: a.model}, err)}, err
	}

	usage := shared.TokenUsage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
		Model:            a.model,
	}

	if len(chatResp.Choices) == 0 {
		err := fmt.Errorf("no content generated")
		return Analysis{Meta: shared.Track(openAIAgent, start, usage, err)}, err
	}

	analysis, err := ParseAnalysis(chatResp.Choices[0].Message.Content)
	analysis.Meta = shared.Track(openAIAgent, start, usage, err)
	return analysis, err
}

func (a *OpenAIAnalyzer) send(ctx context.Context, body []byte, out *chatResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("vision api error: %w", &retry.StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
