package analyzer

import (
	"context"
	"testing"
	"time"

	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/llm"
	"filing_qa/pkg/core/prompt"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func newAnalyzer(reply string, err error) (*Analyzer, *llm.MockProvider) {
	mock := &llm.MockProvider{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		return reply, err
	}}
	a := New(mock, prompt.NewRegistry(), zerolog.Nop()).WithClock(func() time.Time { return fixedNow })
	return a, mock
}

func TestAnalyzeParsesReply(t *testing.T) {
	reply := "```json\n{\"need_form4\": false, \"need_10k_years\": [2024], \"need_10k_items\": [\"MD&A\", \"item_1a\"], \"reason\": \"growth\"}\n```"
	a, mock := newAnalyzer(reply, nil)

	req := a.Analyze(context.Background(), "AMZN", "[AMZN] revenue growth 2024")
	assert.False(t, req.Degraded)
	assert.False(t, req.NeedForm4)
	assert.Equal(t, []int{2024}, req.NeedTenKYears)
	assert.Equal(t, []filing.Section{filing.Item7, filing.Item1A}, req.NeedTenKItems)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, MaxTokens, calls[0].MaxTokens)
	assert.InDelta(t, Temperature, calls[0].Temperature, 1e-9)
	assert.Contains(t, calls[0].UserPrompt, "[AMZN] revenue growth 2024")
	assert.Contains(t, calls[0].UserPrompt, "Current year: 2025")
}

func TestAnalyzeFallsBackOnProse(t *testing.T) {
	a, _ := newAnalyzer("You will need the MD&A section of the latest 10-K.", nil)

	req := a.Analyze(context.Background(), "AMZN", "[AMZN] revenue")
	assert.True(t, req.Degraded)
	assert.False(t, req.NeedForm4)
	assert.Equal(t, []int{2024, 2023}, req.NeedTenKYears)
	assert.Equal(t, filing.DefaultItems, req.NeedTenKItems)
}

func TestAnalyzeFallsBackOnServiceError(t *testing.T) {
	a, _ := newAnalyzer("", &llm.ServiceError{Provider: "deepseek", StatusCode: 500})
	req := a.Analyze(context.Background(), "AAPL", "[AAPL] margins")
	assert.True(t, req.Degraded)
	assert.Equal(t, filing.DefaultItems, req.NeedTenKItems)
}

func TestAnalyzeFallsBackOnUnusableJSON(t *testing.T) {
	a, _ := newAnalyzer(`{"reason": "no idea"}`, nil)
	req := a.Analyze(context.Background(), "AAPL", "[AAPL] margins")
	assert.True(t, req.Degraded)
}

func TestAnalyzeRepairsSloppyJSON(t *testing.T) {
	a, _ := newAnalyzer(`Here you go: {"need_form4": true, "need_10k_items": [],}`, nil)
	req := a.Analyze(context.Background(), "TSLA", "[TSLA] insider selling")
	assert.False(t, req.Degraded)
	assert.True(t, req.NeedForm4)
	assert.Empty(t, req.NeedTenKItems)
}
