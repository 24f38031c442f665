// Package rank turns a company profile and a job posting into an ordered,
// deduplicated list of people worth contacting.
package rank

import (
	"strings"
	"unicode"

	"outreach-engine/internal/domain"
)

// Candidate sources.
const (
	SourceTarget     = "profile_target"
	SourceFounder    = "profile_founder"
	SourceLeadership = "profile_leadership"
	SourceDirectory  = "directory"
)

type Candidate struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Department  string          `json:"department"`
	Priority    domain.Priority `json:"priority"`
	Location    string          `json:"location,omitempty"`
	LinkedInURL string          `json:"linkedin_url,omitempty"`
	Source      string          `json:"source"`
	IsFounder   bool            `json:"-"`
	Score       float64         `json:"score"`
}

// RankScore is Score weighted by priority.
func (c Candidate) RankScore() float64 { return c.Score * c.Priority.Weight() }

// Aggregate collects candidates from the profile's target contacts, its
// founders (small companies only) and its leadership team.
func (s Sizes) Aggregate(p *domain.CompanyProfile, employees int) []Candidate {
	if p == nil {
		return nil
	}
	small := s.IsSmall(employees)
	var out []Candidate

	for _, t := range p.TargetContacts {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		prio := t.Priority
		if !prio.Valid() {
			prio = InferPriority(t.Title, false, small)
		}
		out = append(out, fromPerson(t, SourceTarget, prio, false))
	}

	if small {
		for _, f := range p.Founders {
			if strings.TrimSpace(f.Name) == "" {
				continue
			}
			c := fromPerson(f, SourceFounder, domain.PriorityHigh, true)
			if c.Title == "" {
				c.Title = "Founder"
			}
			c.Department = domain.DepartmentExecutive
			out = append(out, c)
		}
	}

	for _, l := range p.Leadership {
		if strings.TrimSpace(l.Name) == "" {
			continue
		}
		founder := hasWord(l.Title, "founder") || hasWord(l.Title, "cofounder") || strings.Contains(strings.ToLower(l.Title), "co-founder")
		out = append(out, fromPerson(l, SourceLeadership, InferPriority(l.Title, founder, small), founder))
	}
	return out
}

func fromPerson(p domain.Person, source string, prio domain.Priority, founder bool) Candidate {
	return Candidate{
		Name:        strings.TrimSpace(p.Name),
		Title:       strings.TrimSpace(p.Title),
		Department:  InferDepartment(p.Title),
		Priority:    prio,
		Location:    strings.TrimSpace(p.Location),
		LinkedInURL: strings.TrimSpace(p.LinkedInURL),
		Source:      source,
		IsFounder:   founder,
	}
}

// InferDepartment maps a job title to a department by keyword.
func InferDepartment(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "marketing"):
		return domain.DepartmentMarketing
	case containsAny(t, "sales", "revenue", "growth") || hasWord(t, "cro"):
		return domain.DepartmentSales
	case containsAny(t, "engineer", "tech") || hasWord(t, "cto"):
		return domain.DepartmentEngineering
	case strings.Contains(t, "product"):
		return domain.DepartmentProduct
	case containsAny(t, "founder", "chief") || hasWord(t, "ceo"):
		return domain.DepartmentExecutive
	case strings.Contains(t, "operations") || hasWord(t, "ops") || hasWord(t, "coo"):
		return domain.DepartmentOperations
	default:
		return domain.DepartmentOther
	}
}

// InferPriority ranks seniority from a title. Founders of small companies are
// always high.
func InferPriority(title string, founder, small bool) domain.Priority {
	if founder && small {
		return domain.PriorityHigh
	}
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "chief") || strings.Contains(t, "vice president") ||
		hasWord(t, "cro") || hasWord(t, "vp") || hasWord(t, "svp") || hasWord(t, "evp"):
		return domain.PriorityHigh
	case hasWord(t, "head") || strings.Contains(t, "director"):
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// hasWord reports whether w appears in s as a whole word, case-insensitively.
func hasWord(s, w string) bool {
	for _, f := range words(s) {
		if f == w {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
