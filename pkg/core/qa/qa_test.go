package qa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"filing_qa/pkg/core/analyzer"
	"filing_qa/pkg/core/answer"
	"filing_qa/pkg/core/cache"
	"filing_qa/pkg/core/conversation"
	"filing_qa/pkg/core/download"
	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/llm"
	"filing_qa/pkg/core/prompt"
	"filing_qa/pkg/core/selector"
	"filing_qa/pkg/core/ticker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

const requirementsReply = `{"need_form4": false, "need_10k_years": [2024], "need_10k_items": ["item_7"], "reason": "growth"}`

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []download.Job
	err  error
}

func (r *recordingSubmitter) Submit(ctx context.Context, job download.Job) (download.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	if r.err != nil {
		return download.Ticket{}, r.err
	}
	return download.Ticket{ID: "ticket-1", SubmittedAt: fixedNow}, nil
}

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("redis down")
}

func (failingCache) Put(ctx context.Context, key, answer string) error {
	return errors.New("redis down")
}

type harness struct {
	orch      *Orchestrator
	stage1    *llm.MockProvider
	stage2    *llm.MockProvider
	cache     *cache.MemoryCache
	store     *conversation.MemoryStore
	downloads *recordingSubmitter
}

func amazonSource() *filing.MemorySource {
	src := filing.NewMemorySource()
	src.AddRecord(filing.Record{
		ID: 1, CompanyName: "AMAZON COM INC", FilingType: filing.Type10K, FilingYear: 2023,
		Sections: map[filing.Section]string{filing.Item7: "2023 MD&A"},
	})
	src.AddRecord(filing.Record{
		ID: 2, CompanyName: "AMAZON COM INC", FilingType: filing.Type10K, FilingYear: 2024,
		Sections: map[filing.Section]string{filing.Item7: "Net sales increased 11% in 2024."},
	})
	return src
}

func newHarness(t *testing.T, src filing.Source, answerErr error) *harness {
	t.Helper()
	h := &harness{
		stage1: &llm.MockProvider{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return requirementsReply, nil
		}},
		stage2: &llm.MockProvider{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
			if answerErr != nil {
				return "", answerErr
			}
			return "Net sales grew 11% in 2024.", nil
		}},
		cache:     cache.NewMemoryCache(cache.DefaultTTL),
		store:     conversation.NewMemoryStore(),
		downloads: &recordingSubmitter{},
	}
	prompts := prompt.NewRegistry()
	h.orch = New(Deps{
		Selector:      selector.New(src, 0, zerolog.Nop()),
		Analyzer:      analyzer.New(h.stage1, prompts, zerolog.Nop()).WithClock(func() time.Time { return fixedNow }),
		Generator:     answer.New(h.stage2, prompts, answer.ContextBuilder{}, zerolog.Nop()),
		Cache:         h.cache,
		Conversations: h.store,
		Downloads:     h.downloads,
	}, Options{}, zerolog.Nop()).WithClock(func() time.Time { return fixedNow })
	return h
}

func TestAskGroundedAnswer(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()

	res, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "  [AMZN] How did revenue grow in 2024?  "})
	require.NoError(t, err)
	assert.Equal(t, "AMZN", res.Ticker)
	assert.Equal(t, "Net sales grew 11% in 2024.", res.Answer)
	assert.True(t, res.Grounded)
	assert.False(t, res.IsCached)
	assert.NotEmpty(t, res.RequestID)

	require.Len(t, h.stage2.Calls(), 1)
	assert.Contains(t, h.stage2.Calls()[0].UserPrompt, "Net sales increased 11% in 2024.")
	assert.NotContains(t, h.stage2.Calls()[0].UserPrompt, "2023 MD&A")

	msgs, err := h.store.Messages(ctx, res.ConversationID, 7)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "[AMZN] How did revenue grow in 2024?", msgs[0].Question)
	require.NotNil(t, msgs[0].FilingID)
	assert.Equal(t, int64(2), *msgs[0].FilingID)
	assert.Equal(t, res.QuestionID, msgs[0].ID)

	conv, err := h.store.Get(ctx, res.ConversationID, 7)
	require.NoError(t, err)
	assert.Equal(t, conversation.TitleFromQuestion("[AMZN] How did revenue grow in 2024?", 0), conv.Title)
	assert.Equal(t, 1, h.cache.Len())
	assert.Empty(t, h.downloads.jobs)
}

func TestAskCacheHitStillRecordsMessage(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()

	first, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] How did revenue grow in 2024?"})
	require.NoError(t, err)

	convID := first.ConversationID
	second, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] How did revenue grow in 2024?", ConversationID: &convID})
	require.NoError(t, err)
	assert.True(t, second.IsCached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, convID, second.ConversationID)

	assert.Len(t, h.stage1.Calls(), 1)
	assert.Len(t, h.stage2.Calls(), 1)

	msgs, err := h.store.Messages(ctx, convID, 7)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, 2, h.store.HistoryLen(7))
}

func TestAskParseFailureWritesNothing(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()

	for _, q := range []string{"", "   ", "How did revenue grow?", "[amzn] lowercase"} {
		_, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: q})
		require.Error(t, err, q)
		assert.True(t, errors.Is(err, ticker.ErrEmptyQuestion) || errors.Is(err, ticker.ErrInvalidQuestionFormat), q)
	}

	assert.Empty(t, h.stage1.Calls())
	assert.Empty(t, h.stage2.Calls())
	assert.Equal(t, 0, h.cache.Len())
	assert.Equal(t, 0, h.store.HistoryLen(7))
	list, err := h.store.ListForUser(ctx, 7, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAskAnswerFailureIsNotPersisted(t *testing.T) {
	h := newHarness(t, amazonSource(), &llm.ServiceError{Provider: "deepseek", StatusCode: 503, Message: "overloaded"})
	ctx := context.Background()

	_, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] How did revenue grow in 2024?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalysisUnavailable)
	assert.True(t, llm.IsServiceError(err))

	assert.Equal(t, 0, h.cache.Len())
	assert.Equal(t, 0, h.store.HistoryLen(7))
	list, err := h.store.ListForUser(ctx, 7, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAskUnknownTickerTriggersDownload(t *testing.T) {
	h := newHarness(t, filing.NewMemorySource(), nil)
	ctx := context.Background()

	res, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[ZZZZ] What are the main risks?"})
	require.NoError(t, err)
	assert.False(t, res.Grounded)
	assert.Equal(t, "ticket-1", res.DownloadTicket)

	require.Len(t, h.downloads.jobs, 1)
	assert.Equal(t, []string{"ZZZZ"}, h.downloads.jobs[0].Tickers)
	assert.Equal(t, fixedNow, h.downloads.jobs[0].DateTo)

	// general-knowledge answers are recorded but never cached
	assert.Equal(t, 0, h.cache.Len())
	assert.Equal(t, 1, h.store.HistoryLen(7))
	require.Len(t, h.stage2.Calls(), 1)
	assert.Contains(t, h.stage2.Calls()[0].UserPrompt, "download has been requested")
}

func TestAskDownloadFailureStillAnswers(t *testing.T) {
	h := newHarness(t, filing.NewMemorySource(), nil)
	h.downloads.err = errors.New("script missing")

	res, err := h.orch.Ask(context.Background(), AskRequest{UserID: 7, Question: "[ZZZZ] What are the main risks?"})
	require.NoError(t, err)
	assert.Empty(t, res.DownloadTicket)
	assert.False(t, res.Grounded)
}

func TestAskScopedUsesDistinctCacheKeys(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()
	q := "[AMZN] How did revenue grow?"

	_, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: q, Source: filing.SourceScoped, FilingIDs: []int64{2}})
	require.NoError(t, err)
	res, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: q, Source: filing.SourceScoped, FilingIDs: []int64{1}})
	require.NoError(t, err)
	assert.False(t, res.IsCached)
	res, err = h.orch.Ask(ctx, AskRequest{UserID: 7, Question: q, Source: filing.SourceScoped, FilingIDs: []int64{2}})
	require.NoError(t, err)
	assert.True(t, res.IsCached)

	// the unscoped question does not see scoped entries
	res, err = h.orch.Ask(ctx, AskRequest{UserID: 7, Question: q})
	require.NoError(t, err)
	assert.False(t, res.IsCached)
	assert.Equal(t, 3, h.cache.Len())
}

func TestAskValidatesSource(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()

	_, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] x", Source: "xbrl"})
	assert.ErrorIs(t, err, ErrInvalidSource)
	_, err = h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] x", Source: filing.SourceScoped})
	assert.ErrorIs(t, err, ErrMissingFilingIDs)
	assert.Empty(t, h.stage1.Calls())
}

func TestAskForeignConversationRejected(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()

	convID, err := h.store.GetOrCreate(ctx, 1, "Owner's research")
	require.NoError(t, err)

	_, err = h.orch.Ask(ctx, AskRequest{UserID: 2, Question: "[AMZN] revenue?", ConversationID: &convID})
	assert.ErrorIs(t, err, conversation.ErrNotFoundOrForbidden)
	assert.Empty(t, h.stage1.Calls())
	assert.Equal(t, 0, h.store.HistoryLen(2))
}

func TestAskKeepsCustomTitle(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()

	res, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] revenue?", ConversationTitle: "Amazon deep dive"})
	require.NoError(t, err)
	conv, err := h.store.Get(ctx, res.ConversationID, 7)
	require.NoError(t, err)
	assert.Equal(t, "Amazon deep dive", conv.Title)

	again, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] margins?", ConversationTitle: "Amazon deep dive"})
	require.NoError(t, err)
	assert.Equal(t, res.ConversationID, again.ConversationID)
}

func TestAskCacheErrorsAreMisses(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	h.orch.deps.Cache = failingCache{}

	res, err := h.orch.Ask(context.Background(), AskRequest{UserID: 7, Question: "[AMZN] revenue?"})
	require.NoError(t, err)
	assert.False(t, res.IsCached)
	assert.Equal(t, "Net sales grew 11% in 2024.", res.Answer)
	assert.Equal(t, 1, h.store.HistoryLen(7))
}

func TestRenameAndDelete(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()

	res, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] revenue?"})
	require.NoError(t, err)

	assert.ErrorIs(t, h.orch.Rename(ctx, res.ConversationID, 7, "  "), ErrEmptyTitle)
	assert.ErrorIs(t, h.orch.Rename(ctx, res.ConversationID, 8, "Mine"), conversation.ErrNotFoundOrForbidden)
	require.NoError(t, h.orch.Rename(ctx, res.ConversationID, 7, "Amazon"))

	list, err := h.orch.Conversations(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Amazon", list[0].Title)
	assert.Equal(t, "[AMZN] revenue?", list[0].LastQuestion)

	assert.ErrorIs(t, h.orch.Delete(ctx, res.ConversationID, 8), conversation.ErrNotFoundOrForbidden)
	require.NoError(t, h.orch.Delete(ctx, res.ConversationID, 7))
	_, err = h.orch.Messages(ctx, res.ConversationID, 7)
	assert.ErrorIs(t, err, conversation.ErrNotFoundOrForbidden)
}

func TestAskSameQuestionFreshConversations(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	ctx := context.Background()

	first, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] How did revenue grow in 2024?"})
	require.NoError(t, err)
	second, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "  [AMZN] How did revenue grow in 2024?"})
	require.NoError(t, err)

	assert.False(t, first.IsCached)
	assert.True(t, second.IsCached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.NotEqual(t, first.ConversationID, second.ConversationID)

	for _, id := range []int64{first.ConversationID, second.ConversationID} {
		msgs, err := h.store.Messages(ctx, id, 7)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	}
}

type unreachableSource struct {
	*filing.MemorySource
}

func (unreachableSource) HasFilings(ctx context.Context, patterns []string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestAskFilingCheckFailureSurfaces(t *testing.T) {
	h := newHarness(t, unreachableSource{filing.NewMemorySource()}, nil)
	ctx := context.Background()

	res, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[ZZZZ] revenue?"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsStoreError(err))
	assert.NotErrorIs(t, err, ErrAnalysisUnavailable)

	assert.Empty(t, h.stage2.Calls())
	assert.Empty(t, h.downloads.jobs)
	assert.Equal(t, 0, h.cache.Len())
	assert.Equal(t, 0, h.store.HistoryLen(7))
}

func TestAskRequirementFallbackStillSelects(t *testing.T) {
	h := newHarness(t, amazonSource(), nil)
	h.stage1.CompleteFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return "You will want the latest annual report for this.", nil
	}
	ctx := context.Background()

	res, err := h.orch.Ask(ctx, AskRequest{UserID: 7, Question: "[AMZN] How is the business doing?"})
	require.NoError(t, err)
	assert.True(t, res.Grounded)

	// default requirement: item 7 of the last completed fiscal year
	require.Len(t, h.stage2.Calls(), 1)
	assert.Equal(t, 2024, fixedNow.Year()-1)
	assert.Contains(t, h.stage2.Calls()[0].UserPrompt, "Net sales increased 11% in 2024.")
	assert.Empty(t, h.downloads.jobs)

	msgs, err := h.store.Messages(ctx, res.ConversationID, 7)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, res.Answer, msgs[0].Answer)
}
