package filing

import (
	"sort"
	"time"
)

// Requirement is the stage-1 verdict on which filing data a question needs.
type Requirement struct {
	NeedForm4     bool      `json:"need_form4"`
	NeedTenKYears []int     `json:"need_10k_years"`
	NeedTenKItems []Section `json:"need_10k_items"`
	Reason        string    `json:"reason"`

	// Degraded is set when the analyzer fell back to the default descriptor.
	Degraded bool `json:"-"`
}

// DefaultItems are requested when the analyzer gives no usable items.
var DefaultItems = []Section{Item7, Item8}

// DefaultRequirement is the safe descriptor used whenever stage 1 output cannot
// be trusted: no Form 4, the two most recent fiscal years, MD&A and financial
// statements.
func DefaultRequirement(now time.Time) Requirement {
	y := now.Year()
	return Requirement{
		NeedForm4:     false,
		NeedTenKYears: []int{y - 1, y - 2},
		NeedTenKItems: append([]Section(nil), DefaultItems...),
		Reason:        "default requirement",
	}
}

// RawRequirement is the loosely-typed JSON shape a model returns. Pointer
// fields distinguish "absent" from "false/empty".
type RawRequirement struct {
	NeedForm4     *bool    `json:"need_form4"`
	NeedTenKYears []int    `json:"need_10k_years"`
	NeedTenKItems []string `json:"need_10k_items"`
	Reason        string   `json:"reason"`
}

// Normalize converts the raw model output into a Requirement. It returns false
// when the output is structurally unusable (need_form4 missing, or neither Form 4
// nor any recognizable 10-K item requested), in which case callers substitute
// DefaultRequirement.
func (r RawRequirement) Normalize(now time.Time) (Requirement, bool) {
	if r.NeedForm4 == nil {
		return Requirement{}, false
	}

	req := Requirement{NeedForm4: *r.NeedForm4, Reason: r.Reason}

	seen := make(map[Section]bool)
	for _, raw := range r.NeedTenKItems {
		if s, ok := ParseSection(raw); ok && !seen[s] {
			seen[s] = true
			req.NeedTenKItems = append(req.NeedTenKItems, s)
		}
	}
	if len(r.NeedTenKItems) > 0 && len(req.NeedTenKItems) == 0 {
		req.NeedTenKItems = append([]Section(nil), DefaultItems...)
	}

	maxYear := now.Year() + 1
	seenYear := make(map[int]bool)
	for _, y := range r.NeedTenKYears {
		if y < 1993 || y > maxYear || seenYear[y] {
			continue
		}
		seenYear[y] = true
		req.NeedTenKYears = append(req.NeedTenKYears, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(req.NeedTenKYears)))

	if !req.NeedForm4 && len(req.NeedTenKItems) == 0 {
		return Requirement{}, false
	}
	return req, true
}
