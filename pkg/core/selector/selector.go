// Package selector turns a requirement descriptor into the bag of filing rows
// the answer generator works from.
package selector

import (
	"context"
	"fmt"

	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/ticker"

	"github.com/rs/zerolog"
)

// DefaultLimit caps each query when no limit is configured.
const DefaultLimit = 10

// Selector reads filing rows for a ticker. It holds no state between calls.
type Selector struct {
	source filing.Source
	limit  int
	logger zerolog.Logger
}

func New(source filing.Source, limit int, logger zerolog.Logger) *Selector {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Selector{
		source: source,
		limit:  limit,
		logger: logger.With().Str("component", "selector").Logger(),
	}
}

// Select fetches Form 4 rows when requested and 10-K rows (or their completed
// summaries) for the requested years and sections. An empty bag is not an error.
func (s *Selector) Select(ctx context.Context, symbol string, req filing.Requirement, source filing.ContextSource) (*filing.Bag, error) {
	patterns := ticker.CompanyPatterns(symbol)
	bag := &filing.Bag{}

	if req.NeedForm4 {
		rows, err := s.source.Form4(ctx, patterns, s.limit)
		if err != nil {
			return nil, fmt.Errorf("select form 4 for %s: %w", symbol, err)
		}
		bag.Form4 = rows
	}

	if len(req.NeedTenKItems) > 0 {
		q := filing.TenKQuery{
			Patterns: patterns,
			Years:    req.NeedTenKYears,
			Sections: req.NeedTenKItems,
			Limit:    s.limit,
		}
		if source == filing.SourceSummaries {
			rows, err := s.source.Summaries(ctx, q)
			if err != nil {
				return nil, fmt.Errorf("select 10-K summaries for %s: %w", symbol, err)
			}
			bag.Summaries = rows
		} else {
			rows, err := s.source.TenK(ctx, q)
			if err != nil {
				return nil, fmt.Errorf("select 10-K for %s: %w", symbol, err)
			}
			bag.Form10K = rows
		}
	}

	s.logger.Debug().
		Str("ticker", symbol).
		Str("source", string(source)).
		Int("form4", len(bag.Form4)).
		Int("form10k", len(bag.Form10K)).
		Int("summaries", len(bag.Summaries)).
		Msg("filings selected")
	return bag, nil
}

// SelectScoped loads exactly the given filing ids with the requested sections.
// Form 4 rows among them are kept only when the descriptor asks for Form 4.
func (s *Selector) SelectScoped(ctx context.Context, ids []int64, req filing.Requirement) (*filing.Bag, error) {
	bag := &filing.Bag{}
	if len(ids) == 0 {
		return bag, nil
	}

	sections := req.NeedTenKItems
	if len(sections) == 0 {
		sections = filing.DefaultItems
	}
	rows, err := s.source.ByIDs(ctx, ids, sections)
	if err != nil {
		return nil, fmt.Errorf("select filings by id: %w", err)
	}
	for _, r := range rows {
		switch r.FilingType {
		case filing.TypeForm4:
			if req.NeedForm4 {
				bag.Form4 = append(bag.Form4, r)
			}
		default:
			bag.Form10K = append(bag.Form10K, r)
		}
	}
	return bag, nil
}

// HasFilings reports whether the store holds anything at all for the ticker.
func (s *Selector) HasFilings(ctx context.Context, symbol string) (bool, error) {
	ok, err := s.source.HasFilings(ctx, ticker.CompanyPatterns(symbol))
	if err != nil {
		return false, fmt.Errorf("check filings for %s: %w", symbol, err)
	}
	return ok, nil
}
