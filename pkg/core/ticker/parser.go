// Package ticker extracts the company a question is about.
//
// Questions carry their ticker in brackets, e.g. "[AMZN] What were 2023 risks?".
// The bracket form is authoritative; a small company-name table serves as a
// best-effort fallback when it is absent.
package ticker

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyQuestion is returned for blank or whitespace-only input.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrInvalidQuestionFormat is returned when no [TICKER] marker is present.
	ErrInvalidQuestionFormat = errors.New("question must contain a ticker marker such as [AAPL]")
)

// markerRe matches the first uppercase [TICKER] or [TICKER.X] marker.
var markerRe = regexp.MustCompile(`\[([A-Z]{1,5}(?:\.[A-Z])?)\]`)

// symbolRe validates a bare ticker symbol.
var symbolRe = regexp.MustCompile(`^[A-Z]{1,5}(?:\.[A-Z])?$`)

// Parsed is a validated question.
type Parsed struct {
	Ticker string
	// Question is the trimmed input, bracket marker included. Prompts and exact
	// cache keys are built from it.
	Question string
	// FromName is set when the ticker came from the company-name fallback.
	FromName bool
}

// Parse extracts the ticker from the first [TICKER] marker. The question text
// is returned verbatim apart from surrounding whitespace.
func Parse(raw string) (Parsed, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return Parsed{}, ErrEmptyQuestion
	}
	m := markerRe.FindStringSubmatch(q)
	if m == nil {
		return Parsed{}, ErrInvalidQuestionFormat
	}
	return Parsed{Ticker: m[1], Question: q}, nil
}

// ParseWithFallback behaves like Parse but, when no marker is present, tries
// to resolve a well-known company name mentioned in the text.
func ParseWithFallback(raw string) (Parsed, error) {
	p, err := Parse(raw)
	if !errors.Is(err, ErrInvalidQuestionFormat) {
		return p, err
	}
	q := strings.TrimSpace(raw)
	if sym, ok := ResolveCompany(q); ok {
		return Parsed{Ticker: sym, Question: q, FromName: true}, nil
	}
	return Parsed{}, ErrInvalidQuestionFormat
}

// Valid reports whether s is a syntactically valid ticker symbol.
func Valid(s string) bool {
	return symbolRe.MatchString(s)
}
