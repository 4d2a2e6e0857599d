package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DeepSeekBaseURL = "https://api.deepseek.com"
	OpenAIBaseURL   = "https://api.openai.com/v1"
)

// OpenAIProvider talks to any OpenAI-compatible chat/completions endpoint.
// DeepSeek and OpenAI both use it with different base URLs.
type OpenAIProvider struct {
	ProviderName string
	BaseURL      string
	Model        string
	APIKey       string
	HTTPClient   *http.Client
}

var _ Provider = (*OpenAIProvider)(nil)

// NewDeepSeekProvider returns an OpenAIProvider pointed at DeepSeek.
func NewDeepSeekProvider(apiKey, model string, timeout time.Duration) *OpenAIProvider {
	if model == "" {
		model = "deepseek-chat"
	}
	return &OpenAIProvider{
		ProviderName: "deepseek",
		BaseURL:      DeepSeekBaseURL,
		Model:        model,
		APIKey:       apiKey,
		HTTPClient:   &http.Client{Timeout: timeout},
	}
}

// NewOpenAIProvider returns an OpenAIProvider pointed at OpenAI.
func NewOpenAIProvider(apiKey, model string, timeout time.Duration) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		ProviderName: "openai",
		BaseURL:      OpenAIBaseURL,
		Model:        model,
		APIKey:       apiKey,
		HTTPClient:   &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	MaxTokens      int            `json:"max_tokens"`
	Temperature    float64        `json:"temperature"`
	Stream         bool           `json:"stream"`
	ResponseFormat ResponseFormat `json:"response_format"`
}

type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Name() string {
	return p.ProviderName
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	if p.APIKey == "" {
		return "", serviceErr(p.ProviderName, 0, "", ErrMissingAPIKey)
	}

	reqBody := chatRequest{
		Model: p.Model,
		Messages: []Message{
			{Content: req.SystemPrompt, Role: "system"},
			{Content: req.UserPrompt, Role: "user"},
		},
		MaxTokens:      defaultInt(req.MaxTokens, 4096),
		Temperature:    req.Temperature,
		ResponseFormat: ResponseFormat{Type: "text"},
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", serviceErr(p.ProviderName, 0, "marshal request", err)
	}

	url := strings.TrimSuffix(p.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return "", serviceErr(p.ProviderName, 0, "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(httpReq)
	if err != nil {
		return "", serviceErr(p.ProviderName, 0, "", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", serviceErr(p.ProviderName, res.StatusCode, "read body", err)
	}

	if res.StatusCode != http.StatusOK {
		return "", serviceErr(p.ProviderName, res.StatusCode, string(body), nil)
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", serviceErr(p.ProviderName, res.StatusCode, "decode response", err)
	}
	if response.Error != nil {
		return "", serviceErr(p.ProviderName, res.StatusCode, response.Error.Message, nil)
	}
	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", serviceErr(p.ProviderName, res.StatusCode, "", ErrMissingContent)
	}

	return response.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) String() string {
	return fmt.Sprintf("%s(%s)", p.ProviderName, p.Model)
}
