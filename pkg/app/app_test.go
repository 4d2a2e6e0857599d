package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qaAPI "filing_qa/pkg/api/qa"
	"filing_qa/pkg/core/analyzer"
	"filing_qa/pkg/core/config"
	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/llm"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Port:               8080,
		ModelsConfig:       filepath.Join(dir, "models.yaml"),
		ResourcesDir:       dir,
		CacheBackend:       config.CacheMemory,
		CacheTTL:           time.Hour,
		CachePurgeSchedule: "0 0 3 * * *",
		TitleMaxLen:        30,
		LogPretty:          true,
	}
}

func scriptedProvider() *llm.MockProvider {
	return &llm.MockProvider{ProviderName: "deepseek", CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
		if req.MaxTokens == analyzer.MaxTokens {
			return `{"need_form4": false, "need_10k_years": [], "need_10k_items": ["item_7"], "reason": "growth"}`, nil
		}
		return "Net sales grew 11% in 2024.", nil
	}}
}

func amazon() *filing.MemorySource {
	src := filing.NewMemorySource()
	src.AddRecord(filing.Record{
		ID: 2, CompanyName: "AMAZON COM INC", FilingType: filing.Type10K, FilingYear: 2024,
		Sections: map[filing.Section]string{filing.Item7: "Net sales increased 11% in 2024."},
	})
	return src
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(qaAPI.UserHeader, "42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAskOverHTTP(t *testing.T) {
	provider := scriptedProvider()
	a, err := New(context.Background(), testConfig(t), zerolog.Nop(), Options{
		Providers: map[string]llm.Provider{"deepseek": provider},
		Source:    amazon(),
	})
	require.NoError(t, err)
	defer a.Close()
	h := a.Server().Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, h, "/api/ask", `{"question":"[AMZN] How did revenue grow?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first qaAPI.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, first.Success)
	assert.False(t, first.IsCached)
	assert.Equal(t, "Net sales grew 11% in 2024.", first.Answer)
	assert.Len(t, provider.Calls(), 2)

	rec = post(t, h, "/api/ask", `{"question":"[AMZN] How did revenue grow?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var second qaAPI.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.IsCached)
	assert.Len(t, provider.Calls(), 2)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set(qaAPI.UserHeader, "42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "[AMZN] How did revenue grow?")

	rec = post(t, h, "/api/ask", `{"question":"revenue?"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	n, err := a.PurgeCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 1, a.Scheduler.Entries())
}

func TestNewFailsWithoutModelsConfig(t *testing.T) {
	_, err := New(context.Background(), testConfig(t), zerolog.Nop(), Options{})
	assert.Error(t, err)
}

func TestNewBadgerCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheBackend = config.CacheBadger
	cfg.BadgerPath = filepath.Join(t.TempDir(), "cache")

	a, err := New(context.Background(), cfg, zerolog.Nop(), Options{
		Providers: map[string]llm.Provider{"deepseek": scriptedProvider()},
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Cache.Put(context.Background(), "k", "v"))
	got, ok, err := a.Cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
	// badger expires natively, so there is no purge job
	assert.Equal(t, 0, a.Scheduler.Entries())
}
