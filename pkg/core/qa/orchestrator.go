// Package qa runs the ask pipeline: parse the ticker, consult the answer
// cache, work out and fetch the filing data, generate the answer and record it
// in the user's conversation.
package qa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filing_qa/pkg/core/analyzer"
	"filing_qa/pkg/core/answer"
	"filing_qa/pkg/core/cache"
	"filing_qa/pkg/core/conversation"
	"filing_qa/pkg/core/download"
	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/selector"
	"filing_qa/pkg/core/ticker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AskRequest is one question from one user. The user id always comes from the
// caller's authenticated context, never from the request body.
type AskRequest struct {
	UserID   int64
	Question string
	// ConversationID continues an existing conversation; it must belong to UserID.
	ConversationID *int64
	// ConversationTitle picks (or creates) a conversation by title when no id is given.
	ConversationTitle string
	Source            filing.ContextSource
	FilingIDs         []int64
}

// AskResult is the outcome of a successful ask.
type AskResult struct {
	RequestID      string `json:"request_id"`
	Ticker         string `json:"ticker"`
	Answer         string `json:"answer"`
	ConversationID int64  `json:"conversation_id"`
	QuestionID     int64  `json:"question_id"`
	IsCached       bool   `json:"is_cached"`
	// Grounded is false when no filing data was found and the answer came from
	// general knowledge.
	Grounded bool `json:"grounded"`
	// DownloadTicket is set when a filing download was submitted for the ticker.
	DownloadTicket string `json:"download_ticket,omitempty"`
}

// Options tunes the orchestrator.
type Options struct {
	TitleMaxLen           int
	DownloadLookbackYears int
	// NameFallback lets questions without a [TICKER] marker resolve a
	// well-known company name instead.
	NameFallback bool
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Selector      *selector.Selector
	Analyzer      *analyzer.Analyzer
	Generator     *answer.Generator
	Cache         cache.Cache
	Conversations conversation.Store
	Downloads     download.Submitter
}

type Orchestrator struct {
	deps   Deps
	opts   Options
	now    func() time.Time
	logger zerolog.Logger
}

func New(deps Deps, opts Options, logger zerolog.Logger) *Orchestrator {
	if deps.Downloads == nil {
		deps.Downloads = download.Noop{}
	}
	if opts.TitleMaxLen <= 0 {
		opts.TitleMaxLen = conversation.DefaultTitleMaxLen
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		logger: logger.With().Str("component", "qa").Logger(),
	}
}

// WithClock overrides the time source.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Ask answers one question. Parse and validation failures return before any
// write. Every successful call records exactly one message, cached or not.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	requestID := uuid.NewString()
	log := o.logger.With().Str("request_id", requestID).Int64("user_id", req.UserID).Logger()

	parsed, err := o.parse(req.Question)
	if err != nil {
		log.Debug().Err(err).Msg("question rejected")
		return nil, err
	}
	source, ok := filing.ParseContextSource(string(req.Source))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, req.Source)
	}
	if source == filing.SourceScoped && len(req.FilingIDs) == 0 {
		return nil, ErrMissingFilingIDs
	}
	if req.ConversationID != nil {
		if _, err := o.deps.Conversations.Get(ctx, *req.ConversationID, req.UserID); err != nil {
			return nil, o.convErr("load conversation", err)
		}
	}
	log = log.With().Str("ticker", parsed.Ticker).Str("source", string(source)).Logger()

	key := cache.PlainKey(parsed.Question)
	if source == filing.SourceScoped {
		key = cache.ScopedKey(parsed.Ticker, req.FilingIDs, parsed.Question)
	}

	result := &AskResult{RequestID: requestID, Ticker: parsed.Ticker}
	var filingID *int64

	cached, hit, err := o.deps.Cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("answer cache read failed, treating as miss")
	}
	if hit {
		log.Info().Bool("cache_hit", true).Msg("answer served from cache")
		result.Answer = cached
		result.IsCached = true
		result.Grounded = true
	} else {
		log.Info().Bool("cache_hit", false).Msg("answer cache miss")
		res, bagFilingID, ticket, err := o.generate(ctx, log, parsed, source, req.FilingIDs)
		if err != nil {
			return nil, err
		}
		result.Answer = res.Answer
		result.Grounded = res.Grounded
		result.DownloadTicket = ticket
		filingID = bagFilingID

		// General-knowledge answers are not cached so that ingested filings
		// are picked up as soon as they arrive.
		if res.Grounded {
			if err := o.deps.Cache.Put(ctx, key, res.Answer); err != nil {
				log.Warn().Err(err).Msg("answer cache write failed")
			}
		}
	}

	convID, questionID, err := o.persist(ctx, req, parsed.Question, result.Answer, filingID)
	if err != nil {
		log.Error().Err(err).Msg("failed to record answer")
		return nil, err
	}
	result.ConversationID = convID
	result.QuestionID = questionID

	log.Debug().Int64("conversation_id", convID).Int64("question_id", questionID).Msg("ask completed")
	return result, nil
}

func (o *Orchestrator) parse(question string) (ticker.Parsed, error) {
	if o.opts.NameFallback {
		return ticker.ParseWithFallback(question)
	}
	return ticker.Parse(question)
}

// generate runs the cache-miss path: analyze, select, generate.
func (o *Orchestrator) generate(ctx context.Context, log zerolog.Logger, parsed ticker.Parsed, source filing.ContextSource, ids []int64) (answer.Result, *int64, string, error) {
	req := o.deps.Analyzer.Analyze(ctx, parsed.Ticker, parsed.Question)
	if req.Degraded {
		log.Warn().Msg("requirement analysis degraded, default requirement in use")
	}

	var bag *filing.Bag
	var err error
	if source == filing.SourceScoped {
		bag, err = o.deps.Selector.SelectScoped(ctx, ids, req)
	} else {
		bag, err = o.deps.Selector.Select(ctx, parsed.Ticker, req, source)
	}
	if err != nil {
		log.Error().Err(err).Msg("filing selection failed")
		return answer.Result{}, nil, "", storeErr("select filings", err)
	}

	var noDataReason, ticket string
	if bag.Empty() {
		noDataReason, ticket, err = o.explainEmpty(ctx, log, parsed.Ticker, source)
		if err != nil {
			return answer.Result{}, nil, "", err
		}
	}

	res, err := o.deps.Generator.Generate(ctx, answer.Input{
		Ticker:       parsed.Ticker,
		Question:     parsed.Question,
		Bag:          bag,
		Requirement:  req,
		NoDataReason: noDataReason,
	})
	if err != nil {
		log.Error().Err(err).Msg("answer generation failed")
		return answer.Result{}, nil, "", fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	return res, bag.PrimaryFilingID(), ticket, nil
}

// explainEmpty decides why no data was found and, when the company has no
// filings at all, submits a background download.
func (o *Orchestrator) explainEmpty(ctx context.Context, log zerolog.Logger, symbol string, source filing.ContextSource) (string, string, error) {
	log.Warn().Msg("no filing data selected")
	if source == filing.SourceScoped {
		return "none of the selected filings contain the requested sections", "", nil
	}

	has, err := o.deps.Selector.HasFilings(ctx, symbol)
	if err != nil {
		log.Error().Err(err).Msg("filing existence check failed")
		return "", "", storeErr("check filings", err)
	}
	if has {
		return fmt.Sprintf("filings for %s exist but none match the requested years or sections", symbol), "", nil
	}

	job := download.NewJob(symbol, o.now(), o.opts.DownloadLookbackYears)
	ticket, err := o.deps.Downloads.Submit(ctx, job)
	if err != nil {
		if !errors.Is(err, download.ErrDisabled) {
			log.Warn().Err(err).Msg("filing download submission failed")
		}
		return fmt.Sprintf("the ticker %s is not recognized or its filings have not been ingested yet", symbol), "", nil
	}
	log.Info().Str("ticket", ticket.ID).Bool("deduplicated", ticket.Deduplicated).Msg("filing download requested")
	return fmt.Sprintf("filings for %s have not been ingested yet; a download has been requested", symbol), ticket.ID, nil
}

// persist records the message, creating the conversation when needed, and
// retitles a placeholder conversation after its first question.
func (o *Orchestrator) persist(ctx context.Context, req AskRequest, question, answerText string, filingID *int64) (int64, int64, error) {
	var convID int64
	if req.ConversationID != nil {
		convID = *req.ConversationID
	} else {
		title := req.ConversationTitle
		if title == "" {
			title = conversation.PlaceholderNew
		}
		id, err := o.deps.Conversations.GetOrCreate(ctx, req.UserID, title)
		if err != nil {
			return 0, 0, storeErr("open conversation", err)
		}
		convID = id
	}

	questionID, err := o.deps.Conversations.AppendMessage(ctx, conversation.NewMessage{
		ConversationID: convID,
		UserID:         req.UserID,
		Question:       question,
		Answer:         answerText,
		FilingID:       filingID,
	})
	if err != nil {
		return 0, 0, o.convErr("append message", err)
	}

	title := conversation.TitleFromQuestion(question, o.opts.TitleMaxLen)
	if _, err := o.deps.Conversations.SetTitleIfPlaceholder(ctx, convID, req.UserID, title); err != nil {
		return 0, 0, o.convErr("set conversation title", err)
	}
	return convID, questionID, nil
}

// convErr passes ownership failures through unchanged and wraps everything else.
func (o *Orchestrator) convErr(op string, err error) error {
	if errors.Is(err, conversation.ErrNotFoundOrForbidden) {
		return err
	}
	return storeErr(op, err)
}
