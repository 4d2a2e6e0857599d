package ticker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type company struct {
	symbol string
	// names are matched case-insensitively as substrings of the question.
	names []string
	// patterns are LIKE patterns for company_name in the filing store.
	patterns []string
}

// knownCompanies is ordered; the first name match wins.
var knownCompanies = []company{
	{"AAPL", []string{"apple"}, []string{"%Apple%"}},
	{"MSFT", []string{"microsoft"}, []string{"%Microsoft%"}},
	{"AMZN", []string{"amazon"}, []string{"%Amazon%"}},
	{"GOOGL", []string{"alphabet", "google"}, []string{"%Alphabet%", "%Google%"}},
	{"GOOG", nil, []string{"%Alphabet%", "%Google%"}},
	{"META", []string{"meta platforms", "facebook"}, []string{"%Meta Platforms%", "%Facebook%"}},
	{"TSLA", []string{"tesla"}, []string{"%Tesla%"}},
	{"NVDA", []string{"nvidia"}, []string{"%NVIDIA%"}},
	{"NFLX", []string{"netflix"}, []string{"%Netflix%"}},
	{"BRK.B", []string{"berkshire"}, []string{"%Berkshire Hathaway%"}},
	{"BRK.A", nil, []string{"%Berkshire Hathaway%"}},
	{"JPM", []string{"jpmorgan", "jp morgan"}, []string{"%JPMorgan%", "%JP Morgan%"}},
	{"V", []string{"visa inc"}, []string{"%Visa%"}},
	{"WMT", []string{"walmart"}, []string{"%Walmart%", "%Wal-Mart%"}},
	{"KO", []string{"coca-cola", "coca cola"}, []string{"%Coca-Cola%", "%Coca Cola%"}},
	{"INTC", []string{"intel"}, []string{"%Intel Corp%"}},
	{"AMD", []string{"advanced micro devices"}, []string{"%Advanced Micro Devices%"}},
}

// ResolveCompany returns the ticker of a well-known company named in text.
func ResolveCompany(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, c := range knownCompanies {
		for _, n := range c.names {
			if containsWord(lower, n) {
				return c.symbol, true
			}
		}
	}
	return "", false
}

// CompanyPatterns maps a ticker to LIKE patterns for company_name. Unknown
// tickers fall back to the ticker itself as a pattern.
func CompanyPatterns(symbol string) []string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, c := range knownCompanies {
		if c.symbol == symbol {
			return append([]string(nil), c.patterns...)
		}
	}
	return []string{"%" + symbol + "%"}
}

// containsWord reports whether word occurs in s bounded by non-letters, so
// "intel" does not match "intelligence".
func containsWord(s, word string) bool {
	for from := 0; from < len(s); {
		idx := strings.Index(s[from:], word)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(word)
		prev, _ := utf8.DecodeLastRuneInString(s[:start])
		next, _ := utf8.DecodeRuneInString(s[end:])
		before := start == 0 || !unicode.IsLetter(prev)
		after := end == len(s) || !unicode.IsLetter(next)
		if before && after {
			return true
		}
		from = start + 1
	}
	return false
}
