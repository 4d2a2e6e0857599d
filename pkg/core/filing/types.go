// Package filing defines the read-only filing data the question-answering core
// works with: filing rows, pre-computed summaries, and the requirement
// descriptor that decides which of them a question needs.
package filing

import "time"

// Filing types as stored in the filing_type column.
const (
	Type10K   = "10-K"
	Type10Q   = "10-Q"
	TypeForm4 = "4"
)

// Record is one ingested filing row. Sections holds only the columns that were
// selected for the current question.
type Record struct {
	ID              int64              `json:"id"`
	CompanyName     string             `json:"company_name"`
	CIK             string             `json:"cik"`
	FilingType      string             `json:"filing_type"`
	FilingYear      int                `json:"filing_year"`
	ReportDate      time.Time          `json:"report_date"`
	AccessionNumber string             `json:"accession_number"`
	Sections        map[Section]string `json:"sections,omitempty"`

	// Form 4 tables
	NonDerivativeTable string `json:"non_derivative_table,omitempty"`
	DerivativeTable    string `json:"derivative_table,omitempty"`
}

// SummaryStatus tracks the external summarization step.
type SummaryStatus string

const (
	SummaryNotStarted SummaryStatus = "not_started"
	SummaryProcessing SummaryStatus = "processing"
	SummaryCompleted  SummaryStatus = "completed"
)

// Summary is the pre-summarized form of a 10-K, one text per section.
type Summary struct {
	FilingID        int64              `json:"filing_id"`
	CompanyName     string             `json:"company_name"`
	CIK             string             `json:"cik"`
	FilingYear      int                `json:"filing_year"`
	ReportDate      time.Time          `json:"report_date"`
	AccessionNumber string             `json:"accession_number"`
	Status          SummaryStatus      `json:"status"`
	Sections        map[Section]string `json:"sections,omitempty"`
}

// Bag is the selector output, grouped by filing type. An empty bag is a valid
// result and switches the answer generator to its general-knowledge mode.
type Bag struct {
	Form4     []Record  `json:"form4_data"`
	Form10K   []Record  `json:"form10k_data"`
	Summaries []Summary `json:"summary_data,omitempty"`
}

// Empty reports whether nothing was selected.
func (b *Bag) Empty() bool {
	return b == nil || (len(b.Form4) == 0 && len(b.Form10K) == 0 && len(b.Summaries) == 0)
}

// FilingIDs returns the ids of every row in the bag, in bag order.
func (b *Bag) FilingIDs() []int64 {
	if b == nil {
		return nil
	}
	ids := make([]int64, 0, len(b.Form4)+len(b.Form10K)+len(b.Summaries))
	for _, r := range b.Form10K {
		ids = append(ids, r.ID)
	}
	for _, s := range b.Summaries {
		ids = append(ids, s.FilingID)
	}
	for _, r := range b.Form4 {
		ids = append(ids, r.ID)
	}
	return ids
}

// PrimaryFilingID is the filing most directly used for an answer: the newest
// 10-K (or summary) if any, otherwise the newest Form 4.
func (b *Bag) PrimaryFilingID() *int64 {
	if b == nil {
		return nil
	}
	var id int64
	switch {
	case len(b.Form10K) > 0:
		id = b.Form10K[0].ID
	case len(b.Summaries) > 0:
		id = b.Summaries[0].FilingID
	case len(b.Form4) > 0:
		id = b.Form4[0].ID
	default:
		return nil
	}
	return &id
}

// ContextSource selects where the answer context comes from.
type ContextSource string

const (
	// SourceRaw reads section text straight from the filings table.
	SourceRaw ContextSource = "raw"
	// SourceSummaries reads completed pre-computed section summaries.
	SourceSummaries ContextSource = "summaries"
	// SourceScoped restricts the context to caller-chosen filing ids.
	SourceScoped ContextSource = "scoped"
)

// ParseContextSource maps user input to a ContextSource; empty means raw.
func ParseContextSource(s string) (ContextSource, bool) {
	switch ContextSource(s) {
	case "", SourceRaw:
		return SourceRaw, true
	case SourceSummaries:
		return SourceSummaries, true
	case SourceScoped:
		return SourceScoped, true
	}
	return "", false
}
