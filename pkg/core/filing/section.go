package filing

import (
	"regexp"
	"strings"
)

// Section is a 10-K item. Its value doubles as the column prefix in the filing
// store ("item_7" -> item_7_content / item_7_summary), so only values from
// AllSections may ever reach a query.
type Section string

const (
	Item1  Section = "item_1"
	Item1A Section = "item_1a"
	Item1B Section = "item_1b"
	Item2  Section = "item_2"
	Item3  Section = "item_3"
	Item4  Section = "item_4"
	Item5  Section = "item_5"
	Item6  Section = "item_6"
	Item7  Section = "item_7"
	Item7A Section = "item_7a"
	Item8  Section = "item_8"
	Item8A Section = "item_8a"
)

// AllSections in filing order.
var AllSections = []Section{Item1, Item1A, Item1B, Item2, Item3, Item4, Item5, Item6, Item7, Item7A, Item8, Item8A}

var sectionTitles = map[Section]string{
	Item1:  "Item 1. Business",
	Item1A: "Item 1A. Risk Factors",
	Item1B: "Item 1B. Unresolved Staff Comments",
	Item2:  "Item 2. Properties",
	Item3:  "Item 3. Legal Proceedings",
	Item4:  "Item 4. Mine Safety Disclosures",
	Item5:  "Item 5. Market for Registrant's Common Equity",
	Item6:  "Item 6. Selected Financial Data",
	Item7:  "Item 7. Management's Discussion and Analysis (MD&A)",
	Item7A: "Item 7A. Quantitative and Qualitative Disclosures About Market Risk",
	Item8:  "Item 8. Financial Statements and Supplementary Data",
	Item8A: "Item 8A. Controls and Procedures",
}

// sectionAliases is ordered so that substring matching is deterministic:
// longer, more specific phrases come first.
var sectionAliases = []struct {
	alias   string
	section Section
}{
	{"management's discussion", Item7},
	{"management discussion", Item7},
	{"unresolved staff comments", Item1B},
	{"market for common equity", Item5},
	{"selected financial data", Item6},
	{"controls and procedures", Item8A},
	{"financial statements", Item8},
	{"legal proceedings", Item3},
	{"risk factors", Item1A},
	{"market risk", Item7A},
	{"mine safety", Item4},
	{"properties", Item2},
	{"litigation", Item3},
	{"financials", Item8},
	{"business", Item1},
	{"md&a", Item7},
	{"risks", Item1A},
	{"risk", Item1A},
	{"mda", Item7},
}

var itemNumberRe = regexp.MustCompile(`^(?:item[\s_]*)?(\d{1,2}[ab]?)\.?$`)

// Title is the human-readable heading used in prompt context.
func (s Section) Title() string {
	if t, ok := sectionTitles[s]; ok {
		return t
	}
	return string(s)
}

// ContentColumn is the raw text column in the filings table.
func (s Section) ContentColumn() string { return string(s) + "_content" }

// SummaryColumn is the summary column in ten_k_filings_summary.
func (s Section) SummaryColumn() string { return string(s) + "_summary" }

// Valid reports whether s is one of AllSections.
func (s Section) Valid() bool {
	_, ok := sectionTitles[s]
	return ok
}

// ParseSection resolves "Item 7", "item_7", "7", "7A" or a descriptive alias
// such as "MD&A" to a Section.
func ParseSection(raw string) (Section, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	for _, a := range sectionAliases {
		if key == a.alias {
			return a.section, true
		}
	}
	if m := itemNumberRe.FindStringSubmatch(key); m != nil {
		s := Section("item_" + m[1])
		if s.Valid() {
			return s, true
		}
	}
	for _, a := range sectionAliases {
		if len(a.alias) > 4 && strings.Contains(key, a.alias) {
			return a.section, true
		}
	}
	return "", false
}
