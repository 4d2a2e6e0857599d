package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider calls the Anthropic Messages API.
type ClaudeProvider struct {
	Model   string
	APIKey  string
	Timeout time.Duration
	client  anthropic.Client
}

var _ Provider = (*ClaudeProvider)(nil)

func NewClaudeProvider(apiKey, model string, timeout time.Duration) *ClaudeProvider {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &ClaudeProvider{
		Model:   model,
		APIKey:  apiKey,
		Timeout: timeout,
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(timeout),
		),
	}
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

func (p *ClaudeProvider) Complete(ctx context.Context, req Request) (string, error) {
	if p.APIKey == "" {
		return "", serviceErr(p.Name(), 0, "", ErrMissingAPIKey)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.Model),
		MaxTokens: int64(defaultInt(req.MaxTokens, 4096)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", serviceErr(p.Name(), apiErr.StatusCode, "", err)
		}
		return "", serviceErr(p.Name(), 0, "", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", serviceErr(p.Name(), 0, "", ErrMissingContent)
	}
	return text.String(), nil
}
