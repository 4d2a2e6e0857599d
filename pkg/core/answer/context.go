package answer

import (
	"fmt"
	"strings"

	"filing_qa/pkg/core/filing"
	"filing_qa/pkg/core/utils"
)

const (
	// MaxForm4Rows caps how many Form 4 filings reach the prompt.
	MaxForm4Rows = 5

	DefaultSectionCharCap = 6000
	DefaultForm4CharCap   = 800
)

// ContextBuilder renders a filing bag into prompt text. Output depends only on
// the bag and the caps.
type ContextBuilder struct {
	SectionCharCap int
	Form4CharCap   int
}

// Build renders bag. An empty bag yields a notice saying no data was found and why.
func (b ContextBuilder) Build(symbol string, bag *filing.Bag, noDataReason string) string {
	if bag.Empty() {
		return noDataContext(symbol, noDataReason)
	}

	var sb strings.Builder
	b.writeTenK(&sb, bag.Form10K)
	b.writeSummaries(&sb, bag.Summaries)
	b.writeForm4(&sb, bag.Form4)
	return strings.TrimRight(sb.String(), "\n")
}

func (b ContextBuilder) writeForm4(sb *strings.Builder, rows []filing.Record) {
	if len(rows) == 0 {
		return
	}
	sb.WriteString("=== Form 4 insider transactions ===\n")
	for i, r := range rows {
		if i == MaxForm4Rows {
			break
		}
		fmt.Fprintf(sb, "[%d] Company: %s | Report date: %s | Accession: %s\n",
			i+1, r.CompanyName, formatDate(r), r.AccessionNumber)
		if t := b.truncate(r.NonDerivativeTable, b.form4Cap()); t != "" {
			sb.WriteString("Non-derivative transactions:\n")
			sb.WriteString(t)
			sb.WriteString("\n")
		}
		if t := b.truncate(r.DerivativeTable, b.form4Cap()); t != "" {
			sb.WriteString("Derivative transactions:\n")
			sb.WriteString(t)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
}

func (b ContextBuilder) writeTenK(sb *strings.Builder, rows []filing.Record) {
	if len(rows) == 0 {
		return
	}
	sb.WriteString("=== 10-K annual reports ===\n")
	for i, r := range rows {
		fmt.Fprintf(sb, "[%d] Company: %s | Fiscal year: %d | Accession: %s\n",
			i+1, r.CompanyName, r.FilingYear, r.AccessionNumber)
		b.writeSections(sb, r.Sections)
		sb.WriteString("\n")
	}
}

func (b ContextBuilder) writeSummaries(sb *strings.Builder, rows []filing.Summary) {
	if len(rows) == 0 {
		return
	}
	sb.WriteString("=== 10-K section summaries ===\n")
	for i, s := range rows {
		fmt.Fprintf(sb, "[%d] Company: %s | Fiscal year: %d | Accession: %s\n",
			i+1, s.CompanyName, s.FilingYear, s.AccessionNumber)
		b.writeSections(sb, s.Sections)
		sb.WriteString("\n")
	}
}

// writeSections emits sections in filing order so map iteration never leaks into the prompt.
func (b ContextBuilder) writeSections(sb *strings.Builder, sections map[filing.Section]string) {
	for _, sec := range filing.AllSections {
		text, ok := sections[sec]
		if !ok {
			continue
		}
		t := b.truncate(text, b.sectionCap())
		if t == "" {
			continue
		}
		fmt.Fprintf(sb, "--- %s ---\n%s\n", sec.Title(), t)
	}
}

// truncate caps text at limit runes. Plain text is kept verbatim so the
// prefix matches the stored section; only markup is flattened first.
func (b ContextBuilder) truncate(text string, limit int) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if utils.LooksLikeHTML(text) {
		text = utils.PlainText(text)
	}
	return utils.Truncate(text, limit)
}

func (b ContextBuilder) sectionCap() int {
	if b.SectionCharCap <= 0 {
		return DefaultSectionCharCap
	}
	return b.SectionCharCap
}

func (b ContextBuilder) form4Cap() int {
	if b.Form4CharCap <= 0 {
		return DefaultForm4CharCap
	}
	return b.Form4CharCap
}

func formatDate(r filing.Record) string {
	if r.ReportDate.IsZero() {
		return "unknown"
	}
	return r.ReportDate.Format("2006-01-02")
}

func noDataContext(symbol, reason string) string {
	if reason == "" {
		reason = "the ticker was not recognized or its filings have not been ingested yet"
	}
	return fmt.Sprintf("No filing data was found for %s: %s.\nAnswer from general knowledge and state clearly that company-specific figures could not be checked against filings.", symbol, reason)
}
