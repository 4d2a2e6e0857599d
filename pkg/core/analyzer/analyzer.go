// Package analyzer is the first LLM stage: it asks the model which filings and
// 10-K sections a question needs.
package analyzer

import (
	"context"
	"time"

	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/llm"
	"filing_qa/pkg/core/prompt"
	"filing_qa/pkg/core/utils"

	"github.com/rs/zerolog"
)

const (
	MaxTokens   = 2000
	Temperature = 0.2
)

type Analyzer struct {
	provider llm.Provider
	prompts  *prompt.Registry
	now      func() time.Time
	logger   zerolog.Logger
}

func New(provider llm.Provider, prompts *prompt.Registry, logger zerolog.Logger) *Analyzer {
	if prompts == nil {
		prompts = prompt.Get()
	}
	return &Analyzer{
		provider: provider,
		prompts:  prompts,
		now:      time.Now,
		logger:   logger.With().Str("component", "analyzer").Logger(),
	}
}

// WithClock overrides the time source used for year defaults.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze always returns a usable descriptor. Any model failure or unusable
// output yields filing.DefaultRequirement with Degraded set.
func (a *Analyzer) Analyze(ctx context.Context, symbol, question string) filing.Requirement {
	now := a.now()

	system, user, err := a.prompts.Render(prompt.IDRequirements, prompt.NewContext().
		Set("Ticker", symbol).
		Set("Question", question).
		Set("CurrentYear", now.Year()))
	if err != nil {
		return a.degrade(now, symbol, "prompt render failed", err)
	}

	reply, err := a.provider.Complete(ctx, llm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    MaxTokens,
		Temperature:  Temperature,
	})
	if err != nil {
		return a.degrade(now, symbol, "requirement call failed", err)
	}

	var raw filing.RawRequirement
	if _, err := utils.SmartParse(reply, &raw); err != nil {
		return a.degrade(now, symbol, "requirement reply is not JSON", err)
	}

	req, ok := raw.Normalize(now)
	if !ok {
		return a.degrade(now, symbol, "requirement reply is unusable", nil)
	}

	a.logger.Debug().
		Str("ticker", symbol).
		Bool("need_form4", req.NeedForm4).
		Ints("years", req.NeedTenKYears).
		Interface("items", req.NeedTenKItems).
		Str("reason", req.Reason).
		Msg("requirement analyzed")
	return req
}

func (a *Analyzer) degrade(now time.Time, symbol, msg string, err error) filing.Requirement {
	a.logger.Warn().Err(err).Str("ticker", symbol).Msg(msg + ", using default requirement")
	req := filing.DefaultRequirement(now)
	req.Degraded = true
	return req
}
