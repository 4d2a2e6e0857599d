package store

import (
	"context"
	"fmt"
	"time"

	"filing_qa/pkg/core/filing"
)

// FilingRepo reads the externally ingested filing tables. It never writes.
type FilingRepo struct {
	db DBTX
}

var _ filing.Source = (*FilingRepo)(nil)

func NewFilingRepo(db DBTX) *FilingRepo {
	return &FilingRepo{db: db}
}

const filingIdentityColumns = "id, company_name, COALESCE(cik, ''), filing_type, COALESCE(filing_year, 0), report_date, COALESCE(accession_number, '')"

// validSections drops anything outside the section whitelist, so column names
// built from them are always known identifiers.
func validSections(sections []filing.Section) []filing.Section {
	out := make([]filing.Section, 0, len(sections))
	for _, s := range sections {
		if s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

func toInt32s(years []int) []int32 {
	out := make([]int32, len(years))
	for i, y := range years {
		out[i] = int32(y)
	}
	return out
}

func (r *FilingRepo) Form4(ctx context.Context, patterns []string, limit int) ([]filing.Record, error) {
	var q Query
	q.Writef("SELECT %s, COALESCE(non_derivative_table, ''), COALESCE(derivative_table, '') FROM filings WHERE filing_type = %s AND company_name ILIKE ANY(%s) ORDER BY report_date DESC NULLS LAST, id DESC",
		filingIdentityColumns, q.Arg(filing.TypeForm4), q.Arg(patterns))
	if limit > 0 {
		q.Writef(" LIMIT %s", q.Arg(limit))
	}

	rows, err := r.db.Query(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query form 4 filings: %w", err)
	}
	defer rows.Close()

	var out []filing.Record
	for rows.Next() {
		var rec filing.Record
		var reportDate *time.Time
		if err := rows.Scan(&rec.ID, &rec.CompanyName, &rec.CIK, &rec.FilingType, &rec.FilingYear, &reportDate,
			&rec.AccessionNumber, &rec.NonDerivativeTable, &rec.DerivativeTable); err != nil {
			return nil, fmt.Errorf("failed to scan form 4 filing: %w", err)
		}
		if reportDate != nil {
			rec.ReportDate = *reportDate
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *FilingRepo) TenK(ctx context.Context, tq filing.TenKQuery) ([]filing.Record, error) {
	sections := validSections(tq.Sections)

	var q Query
	q.Writef("SELECT %s", filingIdentityColumns)
	for _, s := range sections {
		q.Writef(", COALESCE(%s, '')", s.ContentColumn())
	}
	q.Writef(" FROM filings WHERE filing_type = %s AND company_name ILIKE ANY(%s)", q.Arg(filing.Type10K), q.Arg(tq.Patterns))
	if len(tq.Years) > 0 {
		q.Write(" AND ").In("filing_year", toInt32s(tq.Years))
	}
	q.Write(" ORDER BY filing_year DESC, id DESC")
	if tq.Limit > 0 {
		q.Writef(" LIMIT %s", q.Arg(tq.Limit))
	}

	return r.queryTenK(ctx, q, sections)
}

func (r *FilingRepo) ByIDs(ctx context.Context, ids []int64, sections []filing.Section) ([]filing.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sections = validSections(sections)

	var q Query
	q.Writef("SELECT %s", filingIdentityColumns)
	for _, s := range sections {
		q.Writef(", COALESCE(%s, '')", s.ContentColumn())
	}
	q.Write(", COALESCE(non_derivative_table, ''), COALESCE(derivative_table, '') FROM filings WHERE ").
		In("id", ids).
		Write(" ORDER BY filing_year DESC NULLS LAST, id DESC")

	rows, err := r.db.Query(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query filings by id: %w", err)
	}
	defer rows.Close()

	var out []filing.Record
	for rows.Next() {
		rs := newRecordScan(len(sections))
		var nonDeriv, deriv string
		if err := rows.Scan(append(rs.dest(), &nonDeriv, &deriv)...); err != nil {
			return nil, fmt.Errorf("failed to scan filing: %w", err)
		}
		rec := rs.record(sections)
		if rec.FilingType == filing.TypeForm4 {
			rec.Sections = nil
			rec.NonDerivativeTable, rec.DerivativeTable = nonDeriv, deriv
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *FilingRepo) queryTenK(ctx context.Context, q Query, sections []filing.Section) ([]filing.Record, error) {
	rows, err := r.db.Query(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query 10-K filings: %w", err)
	}
	defer rows.Close()

	var out []filing.Record
	for rows.Next() {
		rs := newRecordScan(len(sections))
		if err := rows.Scan(rs.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan 10-K filing: %w", err)
		}
		out = append(out, rs.record(sections))
	}
	return out, rows.Err()
}

// recordScan collects one filings row: identity columns, a nullable report
// date and the requested section texts in order.
type recordScan struct {
	rec        filing.Record
	reportDate *time.Time
	texts      []string
}

func newRecordScan(nSections int) *recordScan {
	return &recordScan{texts: make([]string, nSections)}
}

func (rs *recordScan) dest() []any {
	d := []any{&rs.rec.ID, &rs.rec.CompanyName, &rs.rec.CIK, &rs.rec.FilingType, &rs.rec.FilingYear, &rs.reportDate, &rs.rec.AccessionNumber}
	for i := range rs.texts {
		d = append(d, &rs.texts[i])
	}
	return d
}

func (rs *recordScan) record(sections []filing.Section) filing.Record {
	rec := rs.rec
	if rs.reportDate != nil {
		rec.ReportDate = *rs.reportDate
	}
	rec.Sections = make(map[filing.Section]string, len(sections))
	for i, s := range sections {
		rec.Sections[s] = rs.texts[i]
	}
	return rec
}

// Summaries reads completed pre-computed section summaries joined to their 10-K rows.
func (r *FilingRepo) Summaries(ctx context.Context, tq filing.TenKQuery) ([]filing.Summary, error) {
	sections := validSections(tq.Sections)

	var q Query
	q.Write("SELECT s.filing_id, t.company_name, COALESCE(t.cik, ''), COALESCE(t.filing_year, 0), t.report_date, COALESCE(t.accession_number, ''), s.status")
	for _, sec := range sections {
		q.Writef(", COALESCE(s.%s, '')", sec.SummaryColumn())
	}
	q.Writef(" FROM ten_k_filings_summary s JOIN ten_k_filings t ON t.id = s.filing_id WHERE s.status = %s AND t.company_name ILIKE ANY(%s)",
		q.Arg(string(filing.SummaryCompleted)), q.Arg(tq.Patterns))
	if len(tq.Years) > 0 {
		q.Write(" AND ").In("t.filing_year", toInt32s(tq.Years))
	}
	q.Write(" ORDER BY t.filing_year DESC, s.filing_id DESC")
	if tq.Limit > 0 {
		q.Writef(" LIMIT %s", q.Arg(tq.Limit))
	}

	rows, err := r.db.Query(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query 10-K summaries: %w", err)
	}
	defer rows.Close()

	var out []filing.Summary
	for rows.Next() {
		var sum filing.Summary
		var reportDate *time.Time
		var status string
		texts := make([]string, len(sections))
		dest := []any{&sum.FilingID, &sum.CompanyName, &sum.CIK, &sum.FilingYear, &reportDate, &sum.AccessionNumber, &status}
		for i := range texts {
			dest = append(dest, &texts[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan 10-K summary: %w", err)
		}
		if reportDate != nil {
			sum.ReportDate = *reportDate
		}
		sum.Status = filing.SummaryStatus(status)
		sum.Sections = make(map[filing.Section]string, len(sections))
		for i, sec := range sections {
			sum.Sections[sec] = texts[i]
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// HasFilings reports whether any filing or summarized 10-K matches the patterns.
func (r *FilingRepo) HasFilings(ctx context.Context, patterns []string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM filings WHERE company_name ILIKE ANY($1))
		    OR EXISTS (SELECT 1 FROM ten_k_filings WHERE company_name ILIKE ANY($1))
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, patterns).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check filings: %w", err)
	}
	return exists, nil
}
