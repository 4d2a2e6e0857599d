// Package download submits on-demand filing downloads to an external script.
// Submission returns a ticket immediately; the script runs in the background.
package download

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrDisabled is returned by Noop when no download script is configured.
var ErrDisabled = errors.New("filing downloads are disabled")

// Job asks the external downloader for filings.
type Job struct {
	Tickers     []string  `json:"tickers"`
	FilingTypes []string  `json:"filing_types"`
	DateFrom    time.Time `json:"date_from"`
	DateTo      time.Time `json:"date_to"`
}

// Validate checks that the job names at least one ticker and filing type and
// that the date range is ordered.
func (j Job) Validate() error {
	if len(j.Tickers) == 0 {
		return fmt.Errorf("download job needs at least one ticker")
	}
	if len(j.FilingTypes) == 0 {
		return fmt.Errorf("download job needs at least one filing type")
	}
	if !j.DateFrom.IsZero() && !j.DateTo.IsZero() && j.DateTo.Before(j.DateFrom) {
		return fmt.Errorf("download job date_to %s is before date_from %s",
			j.DateTo.Format("2006-01-02"), j.DateFrom.Format("2006-01-02"))
	}
	return nil
}

// key identifies equivalent jobs regardless of ticker and type order.
func (j Job) key() string {
	tickers := append([]string(nil), j.Tickers...)
	types := append([]string(nil), j.FilingTypes...)
	sort.Strings(tickers)
	sort.Strings(types)
	return strings.Join(tickers, ",") + "|" + strings.Join(types, ",")
}

// Ticket acknowledges a submission.
type Ticket struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
	// Deduplicated is set when an identical job was already running and its
	// ticket was returned instead of starting a new one.
	Deduplicated bool `json:"deduplicated"`
}

// Submitter accepts download jobs without waiting for them to finish.
type Submitter interface {
	Submit(ctx context.Context, job Job) (Ticket, error)
}

// Noop is the Submitter used when downloads are not configured.
type Noop struct{}

func (Noop) Submit(ctx context.Context, job Job) (Ticket, error) {
	return Ticket{}, ErrDisabled
}

// NewJob builds the standard on-demand job for one ticker: 10-K and Form 4
// filings from lookbackYears ago until now.
func NewJob(ticker string, now time.Time, lookbackYears int) Job {
	if lookbackYears <= 0 {
		lookbackYears = 3
	}
	return Job{
		Tickers:     []string{ticker},
		FilingTypes: []string{"10-K", "4"},
		DateFrom:    now.AddDate(-lookbackYears, 0, 0),
		DateTo:      now,
	}
}
