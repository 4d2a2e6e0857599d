package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"filing_qa/pkg/core/filing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amazonSource() *filing.MemorySource {
	src := filing.NewMemorySource()
	src.AddRecord(filing.Record{
		ID: 1, CompanyName: "AMAZON COM INC", FilingType: filing.Type10K, FilingYear: 2023,
		Sections: map[filing.Section]string{filing.Item7: "2023 MD&A", filing.Item1A: "2023 risks"},
	})
	src.AddRecord(filing.Record{
		ID: 2, CompanyName: "AMAZON COM INC", FilingType: filing.Type10K, FilingYear: 2024,
		Sections: map[filing.Section]string{filing.Item7: "2024 MD&A", filing.Item1A: "2024 risks"},
	})
	src.AddRecord(filing.Record{
		ID: 3, CompanyName: "Amazon.com, Inc.", FilingType: filing.TypeForm4,
		ReportDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), NonDerivativeTable: "sale 100 shares",
	})
	src.AddSummary(filing.Summary{
		FilingID: 2, CompanyName: "AMAZON COM INC", FilingYear: 2024, Status: filing.SummaryCompleted,
		Sections: map[filing.Section]string{filing.Item7: "2024 MD&A summary"},
	})
	return src
}

func TestSelectRestrictsYearsAndSections(t *testing.T) {
	s := New(amazonSource(), 0, zerolog.Nop())
	req := filing.Requirement{NeedTenKYears: []int{2024}, NeedTenKItems: []filing.Section{filing.Item7}}

	bag, err := s.Select(context.Background(), "AMZN", req, filing.SourceRaw)
	require.NoError(t, err)
	assert.Empty(t, bag.Form4)
	require.Len(t, bag.Form10K, 1)
	assert.Equal(t, int64(2), bag.Form10K[0].ID)
	assert.Equal(t, map[filing.Section]string{filing.Item7: "2024 MD&A"}, bag.Form10K[0].Sections)
}

func TestSelectBothYearsNewestFirst(t *testing.T) {
	s := New(amazonSource(), 0, zerolog.Nop())
	req := filing.Requirement{NeedForm4: true, NeedTenKItems: []filing.Section{filing.Item7}}

	bag, err := s.Select(context.Background(), "AMZN", req, filing.SourceRaw)
	require.NoError(t, err)
	require.Len(t, bag.Form10K, 2)
	assert.Equal(t, 2024, bag.Form10K[0].FilingYear)
	assert.Equal(t, 2023, bag.Form10K[1].FilingYear)
	require.Len(t, bag.Form4, 1)
	assert.Equal(t, "sale 100 shares", bag.Form4[0].NonDerivativeTable)
}

func TestSelectNoTenKItemsSkipsTenK(t *testing.T) {
	s := New(amazonSource(), 0, zerolog.Nop())
	bag, err := s.Select(context.Background(), "AMZN", filing.Requirement{NeedForm4: true}, filing.SourceRaw)
	require.NoError(t, err)
	assert.Empty(t, bag.Form10K)
	assert.Len(t, bag.Form4, 1)
}

func TestSelectSummaries(t *testing.T) {
	s := New(amazonSource(), 0, zerolog.Nop())
	req := filing.Requirement{NeedTenKItems: []filing.Section{filing.Item7}}

	bag, err := s.Select(context.Background(), "AMZN", req, filing.SourceSummaries)
	require.NoError(t, err)
	assert.Empty(t, bag.Form10K)
	require.Len(t, bag.Summaries, 1)
	assert.Equal(t, "2024 MD&A summary", bag.Summaries[0].Sections[filing.Item7])
}

func TestSelectUnknownTickerIsEmpty(t *testing.T) {
	s := New(amazonSource(), 0, zerolog.Nop())
	req := filing.Requirement{NeedForm4: true, NeedTenKItems: filing.DefaultItems}

	bag, err := s.Select(context.Background(), "ZZZZ", req, filing.SourceRaw)
	require.NoError(t, err)
	assert.True(t, bag.Empty())

	has, err := s.HasFilings(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = s.HasFilings(context.Background(), "AMZN")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSelectLimit(t *testing.T) {
	src := filing.NewMemorySource()
	for i := 0; i < 5; i++ {
		src.AddRecord(filing.Record{ID: int64(i + 1), CompanyName: "Apple Inc.", FilingType: filing.Type10K, FilingYear: 2020 + i})
	}
	s := New(src, 3, zerolog.Nop())
	bag, err := s.Select(context.Background(), "AAPL", filing.Requirement{NeedTenKItems: []filing.Section{filing.Item7}}, filing.SourceRaw)
	require.NoError(t, err)
	require.Len(t, bag.Form10K, 3)
	assert.Equal(t, 2024, bag.Form10K[0].FilingYear)
}

func TestSelectScoped(t *testing.T) {
	s := New(amazonSource(), 0, zerolog.Nop())

	bag, err := s.SelectScoped(context.Background(), []int64{1, 3}, filing.Requirement{NeedTenKItems: []filing.Section{filing.Item1A}})
	require.NoError(t, err)
	require.Len(t, bag.Form10K, 1)
	assert.Equal(t, "2023 risks", bag.Form10K[0].Sections[filing.Item1A])
	assert.Empty(t, bag.Form4)

	bag, err = s.SelectScoped(context.Background(), nil, filing.Requirement{})
	require.NoError(t, err)
	assert.True(t, bag.Empty())
}

type failingSource struct {
	filing.Source
}

func (failingSource) Form4(ctx context.Context, patterns []string, limit int) ([]filing.Record, error) {
	return nil, errors.New("connection refused")
}

func TestSelectPropagatesStoreErrors(t *testing.T) {
	s := New(failingSource{}, 0, zerolog.Nop())
	_, err := s.Select(context.Background(), "AAPL", filing.Requirement{NeedForm4: true}, filing.SourceRaw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
