// Package answer is the second LLM stage: it assembles filing context and asks
// the model for the final Markdown answer.
package answer

import (
	"context"
	"strings"

	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/llm"
	"filing_qa/pkg/core/prompt"
	"filing_qa/pkg/core/utils"

	"github.com/rs/zerolog"
)

const (
	MaxTokens   = 4000
	Temperature = 0.3
)

// Input is everything stage 2 needs for one question.
type Input struct {
	Ticker      string
	Question    string
	Bag         *filing.Bag
	Requirement filing.Requirement
	// NoDataReason explains an empty bag to the model; optional.
	NoDataReason string
}

// Result carries the answer and which prompt variant produced it.
type Result struct {
	Answer   string
	Grounded bool
}

type Generator struct {
	provider llm.Provider
	prompts  *prompt.Registry
	builder  ContextBuilder
	logger   zerolog.Logger
}

func New(provider llm.Provider, prompts *prompt.Registry, builder ContextBuilder, logger zerolog.Logger) *Generator {
	if prompts == nil {
		prompts = prompt.Get()
	}
	return &Generator{
		provider: provider,
		prompts:  prompts,
		builder:  builder,
		logger:   logger.With().Str("component", "answer").Logger(),
	}
}

// Generate returns the model's answer. A model failure is returned as is
// (an *llm.ServiceError); the caller decides how to surface it.
func (g *Generator) Generate(ctx context.Context, in Input) (Result, error) {
	grounded := !in.Bag.Empty()
	promptID := prompt.IDAnswerGeneral
	if grounded {
		promptID = prompt.IDAnswerGrounded
	}

	contextText := g.builder.Build(in.Ticker, in.Bag, in.NoDataReason)
	system, user, err := g.prompts.Render(promptID, prompt.NewContext().
		Set("Ticker", in.Ticker).
		Set("Question", in.Question).
		Set("Context", contextText))
	if err != nil {
		return Result{}, err
	}

	g.logger.Debug().
		Str("ticker", in.Ticker).
		Str("prompt", promptID).
		Int("context_chars", len(contextText)).
		Msg("generating answer")

	reply, err := g.provider.Complete(ctx, llm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    MaxTokens,
		Temperature:  Temperature,
	})
	if err != nil {
		return Result{}, err
	}

	answer := utils.CleanMarkdown(reply)
	if !utils.ValidateMarkdown(answer) {
		return Result{}, &llm.ServiceError{Provider: g.provider.Name(), Err: llm.ErrMissingContent}
	}
	return Result{Answer: strings.TrimSpace(answer), Grounded: grounded}, nil
}
