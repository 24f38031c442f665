package enrich

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// CleanText collapses whitespace, including non-breaking spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// PlainText strips all markup from an HTML fragment.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	// block boundaries become spaces so words do not run together
	s = strings.NewReplacer("<br", " <br", "</p>", "</p> ", "</li>", "</li> ", "</div>", "</div> ").Replace(s)
	return CleanText(html.UnescapeString(strict.Sanitize(s)))
}

// NormalizeLocation cleans a location string and drops repeated parts.
func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	loc = strings.TrimPrefix(loc, "Location:")
	loc = strings.TrimSpace(loc)

	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}
