package rank

import "strings"

// Sizes holds the employee-count thresholds the ranking rules key on.
// An unknown count (0) is treated as small.
type Sizes struct {
	Small int // below this a company is small
	Large int // at or above this a company is large
}

var DefaultSizes = Sizes{Small: 50, Large: 500}

func (s Sizes) withDefaults() Sizes {
	if s.Small <= 0 {
		s.Small = DefaultSizes.Small
	}
	if s.Large <= 0 {
		s.Large = DefaultSizes.Large
	}
	return s
}

func (s Sizes) IsSmall(employees int) bool {
	return employees < s.withDefaults().Small
}

type jobCategory int

const (
	categoryOther jobCategory = iota
	categorySales
	categoryEngineering
)

func categorize(jobTitle string) jobCategory {
	t := strings.ToLower(jobTitle)
	switch {
	case containsAny(t, "sales", "marketing", "gtm", "revenue"):
		return categorySales
	case containsAny(t, "engineer", "developer", "technical"):
		return categoryEngineering
	default:
		return categoryOther
	}
}

// TargetRoles returns the titles to search for given the job being hired for
// and the size of the company.
func (s Sizes) TargetRoles(jobTitle string, employees int) []string {
	s = s.withDefaults()
	small := employees < s.Small

	switch categorize(jobTitle) {
	case categorySales:
		if small {
			return []string{"Founder", "CEO", "Co-Founder"}
		}
		roles := []string{
			"VP Sales", "VP Marketing", "VP Revenue", "VP Growth",
			"Head of Sales", "Head of Marketing", "Head of Revenue", "CRO",
		}
		if employees >= s.Large {
			roles = append(roles, "Director of Sales", "Director of Marketing")
		}
		return roles
	case categoryEngineering:
		if small {
			return []string{"CTO", "Founder"}
		}
		return []string{"VP Engineering", "Head of Engineering", "CTO"}
	default:
		if small {
			return []string{"Founder", "CEO"}
		}
		return []string{"VP", "Head", "Director", "Chief"}
	}
}

// TargetRoles uses DefaultSizes.
func TargetRoles(jobTitle string, employees int) []string {
	return DefaultSizes.TargetRoles(jobTitle, employees)
}
