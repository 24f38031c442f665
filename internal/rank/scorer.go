package rank

import (
	"context"
	"errors"
	"strings"
)

// ScoreRequest is everything a scorer sees about one company's candidates.
type ScoreRequest struct {
	CompanyName   string
	CompanyDomain string
	Industry      string
	Description   string
	EmployeeCount int
	JobTitle      string
	JobLocation   string
	Candidates    []Candidate
}

// Scorer returns one score in [0,1] per candidate, in input order.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) ([]float64, error)
}

// Heuristic scores by title seniority. It never fails and is the fallback
// for every other scorer.
type Heuristic struct {
	Sizes Sizes
}

func (h Heuristic) Score(_ context.Context, req ScoreRequest) ([]float64, error) {
	out := make([]float64, len(req.Candidates))
	for i, c := range req.Candidates {
		out[i] = h.score(c, req.JobTitle, req.EmployeeCount)
	}
	return out, nil
}

func (h Heuristic) score(c Candidate, jobTitle string, employees int) float64 {
	t := strings.ToLower(c.Title)
	s := 0.5

	switch {
	case strings.Contains(t, "chief") || hasWord(t, "cro"):
		s += 0.3
	case hasWord(t, "vp") || strings.Contains(t, "vice president"):
		s += 0.25
	case hasWord(t, "head"):
		s += 0.2
	case strings.Contains(t, "director"):
		s += 0.15
	}

	if h.Sizes.IsSmall(employees) && (c.IsFounder || strings.Contains(t, "founder") || hasWord(t, "ceo")) {
		s += 0.3
	}

	if kw := relevantKeywords[categorize(jobTitle)]; len(kw) > 0 {
		for _, w := range words(t) {
			if matchesKeyword(w, kw) {
				s += 0.1
				break
			}
		}
	}

	if s > 1 {
		s = 1
	}
	return s
}

var relevantKeywords = map[jobCategory][]string{
	categorySales:       {"sales", "marketing", "revenue", "growth", "gtm"},
	categoryEngineering: {"engineer", "engineering", "technical", "technology", "cto", "development"},
}

func matchesKeyword(w string, kw []string) bool {
	for _, k := range kw {
		if w == k {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

var errScoreCount = errors.New("scorer returned wrong number of scores")
