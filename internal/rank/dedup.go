package rank

import (
	"strings"

	"golang.org/x/text/cases"

	"outreach-engine/internal/domain"
)

var folder = cases.Fold()

// NameKey is the case-folded, whitespace-collapsed form of a person's name.
func NameKey(name string) string {
	return folder.String(strings.Join(strings.Fields(name), " "))
}

// Dedup drops candidates whose name collides within the company domain. A
// high-priority duplicate replaces a lower one in place; otherwise the first
// seen wins.
func Dedup(cands []Candidate, companyDomain string) []Candidate {
	dom := strings.ToLower(strings.TrimSpace(companyDomain))
	idx := make(map[string]int, len(cands))
	out := make([]Candidate, 0, len(cands))

	for _, c := range cands {
		k := NameKey(c.Name) + "@" + dom
		if i, ok := idx[k]; ok {
			if c.Priority == domain.PriorityHigh && out[i].Priority != domain.PriorityHigh {
				out[i] = c
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, c)
	}
	return out
}

// FilterByCountry keeps candidates whose location mentions country. People
// with no known location are kept.
func FilterByCountry(cands []Candidate, country string) []Candidate {
	country = NameKey(country)
	if country == "" {
		return cands
	}
	out := cands[:0:0]
	for _, c := range cands {
		loc := NameKey(c.Location)
		if loc == "" || strings.Contains(loc, country) {
			out = append(out, c)
		}
	}
	return out
}
