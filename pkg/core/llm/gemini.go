package llm

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google's Gemini models.
type GeminiProvider struct {
	Model   string // e.g. "gemini-2.0-flash"
	APIKey  string
	Timeout time.Duration
}

var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(apiKey, model string, timeout time.Duration) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{Model: model, APIKey: apiKey, Timeout: timeout}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete sends a generateContent request using the official GenAI SDK.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	if p.APIKey == "" {
		return "", serviceErr(p.Name(), 0, "", ErrMissingAPIKey)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", serviceErr(p.Name(), 0, "create client", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(defaultInt(req.MaxTokens, 4096)),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.SystemPrompt},
			},
		}
	}

	result, err := client.Models.GenerateContent(ctx, p.Model, genai.Text(req.UserPrompt), config)
	if err != nil {
		return "", serviceErr(p.Name(), 0, "generation failed", err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", serviceErr(p.Name(), 0, "", ErrMissingContent)
	}
	return text, nil
}
