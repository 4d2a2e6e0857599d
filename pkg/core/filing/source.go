package filing

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// TenKQuery narrows a 10-K lookup. Empty Years means any year.
type TenKQuery struct {
	Patterns []string
	Years    []int
	Sections []Section
	Limit    int
}

// Source is the read-only filing store the selector queries.
type Source interface {
	Form4(ctx context.Context, patterns []string, limit int) ([]Record, error)
	TenK(ctx context.Context, q TenKQuery) ([]Record, error)
	Summaries(ctx context.Context, q TenKQuery) ([]Summary, error)
	ByIDs(ctx context.Context, ids []int64, sections []Section) ([]Record, error)
	HasFilings(ctx context.Context, patterns []string) (bool, error)
}

// =============================================================================
// IN-MEMORY SOURCE (For development/testing)
// Production reads the filings tables through store.FilingRepo
// =============================================================================

// MemorySource implements Source over rows held in memory. It mirrors the SQL
// semantics of the postgres repository: case-insensitive LIKE patterns, ordering
// and limits.
type MemorySource struct {
	mu        sync.RWMutex
	records   []Record
	summaries []Summary
}

// NewMemorySource creates an empty in-memory filing source
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// AddRecord stores a filing row with all of its sections.
func (m *MemorySource) AddRecord(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

// AddSummary stores a summary row.
func (m *MemorySource) AddSummary(s Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
}

func (m *MemorySource) Form4(ctx context.Context, patterns []string, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		if r.FilingType == TypeForm4 && matchesAny(r.CompanyName, patterns) {
			out = append(out, copyRecord(r, nil))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate) })
	return limitRecords(out, limit), nil
}

func (m *MemorySource) TenK(ctx context.Context, q TenKQuery) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		if r.FilingType != Type10K || !matchesAny(r.CompanyName, q.Patterns) || !yearWanted(r.FilingYear, q.Years) {
			continue
		}
		out = append(out, copyRecord(r, q.Sections))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FilingYear > out[j].FilingYear })
	return limitRecords(out, q.Limit), nil
}

func (m *MemorySource) Summaries(ctx context.Context, q TenKQuery) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Summary
	for _, s := range m.summaries {
		if s.Status != SummaryCompleted || !matchesAny(s.CompanyName, q.Patterns) || !yearWanted(s.FilingYear, q.Years) {
			continue
		}
		c := s
		c.Sections = pickSections(s.Sections, q.Sections)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FilingYear > out[j].FilingYear })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemorySource) ByIDs(ctx context.Context, ids []int64, sections []Section) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Record
	for _, r := range m.records {
		if want[r.ID] {
			out = append(out, copyRecord(r, sections))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FilingYear > out[j].FilingYear })
	return out, nil
}

func (m *MemorySource) HasFilings(ctx context.Context, patterns []string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if matchesAny(r.CompanyName, patterns) {
			return true, nil
		}
	}
	for _, s := range m.summaries {
		if matchesAny(s.CompanyName, patterns) {
			return true, nil
		}
	}
	return false, nil
}

func copyRecord(r Record, sections []Section) Record {
	c := r
	if r.FilingType == TypeForm4 {
		c.Sections = nil
		return c
	}
	c.Sections = pickSections(r.Sections, sections)
	c.NonDerivativeTable, c.DerivativeTable = "", ""
	return c
}

func pickSections(all map[Section]string, want []Section) map[Section]string {
	out := make(map[Section]string, len(want))
	for _, s := range want {
		if v, ok := all[s]; ok {
			out[s] = v
		}
	}
	return out
}

func limitRecords(rs []Record, limit int) []Record {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}

func yearWanted(year int, years []int) bool {
	if len(years) == 0 {
		return true
	}
	for _, y := range years {
		if y == year {
			return true
		}
	}
	return false
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if Like(name, p) {
			return true
		}
	}
	return false
}

// Like evaluates a case-insensitive SQL LIKE pattern where % matches any run of
// characters. The underscore wildcard is treated literally.
func Like(s, pattern string) bool {
	s, pattern = strings.ToLower(s), strings.ToLower(pattern)
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return s == pattern
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return strings.HasSuffix(s, last)
}
