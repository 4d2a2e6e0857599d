package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const QwenEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// QwenProvider calls the native DashScope text-generation API.
type QwenProvider struct {
	Endpoint   string
	Model      string
	APIKey     string
	HTTPClient *http.Client
}

var _ Provider = (*QwenProvider)(nil)

func NewQwenProvider(apiKey, model string, timeout time.Duration) *QwenProvider {
	if model == "" {
		model = "qwen-max"
	}
	return &QwenProvider{
		Endpoint:   QwenEndpoint,
		Model:      model,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (p *QwenProvider) Name() string {
	return "qwen"
}

func (p *QwenProvider) Complete(ctx context.Context, req Request) (string, error) {
	if p.APIKey == "" {
		return "", serviceErr(p.Name(), 0, "", ErrMissingAPIKey)
	}

	reqBody := map[string]interface{}{
		"model": p.Model,
		"input": map[string]interface{}{
			"messages": []map[string]string{
				{"role": "system", "content": req.SystemPrompt},
				{"role": "user", "content": req.UserPrompt},
			},
		},
		"parameters": map[string]interface{}{
			"result_format": "message",
			"max_tokens":    defaultInt(req.MaxTokens, 4096),
			"temperature":   req.Temperature,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", serviceErr(p.Name(), 0, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", serviceErr(p.Name(), 0, "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", serviceErr(p.Name(), 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", serviceErr(p.Name(), resp.StatusCode, string(bodyBytes), nil)
	}

	// {"output": {"choices": [{"message": {"content": "..."}}]}} or {"output": {"text": "..."}}
	var result struct {
		Output struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Text string `json:"text"`
		} `json:"output"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", serviceErr(p.Name(), resp.StatusCode, "decode response", err)
	}

	if result.Code != "" {
		return "", serviceErr(p.Name(), resp.StatusCode, result.Code+" - "+result.Message, nil)
	}

	if len(result.Output.Choices) > 0 && strings.TrimSpace(result.Output.Choices[0].Message.Content) != "" {
		return result.Output.Choices[0].Message.Content, nil
	}
	if strings.TrimSpace(result.Output.Text) != "" {
		return result.Output.Text, nil
	}

	return "", serviceErr(p.Name(), resp.StatusCode, "", ErrMissingContent)
}
