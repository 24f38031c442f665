package domain

import "time"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight is the multiplier applied to a prospect's score when ordering.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

const (
	DepartmentSales       = "Sales"
	DepartmentMarketing   = "Marketing"
	DepartmentEngineering = "Engineering"
	DepartmentProduct     = "Product"
	DepartmentExecutive   = "Executive"
	DepartmentOperations  = "Operations"
	DepartmentOther       = "Other"
)

type Prospect struct {
	ID              int64     `json:"id"`
	CampaignID      int64     `json:"campaignId"`
	CompanyID       int64     `json:"companyId"`
	Name            string    `json:"name"`
	NameKey         string    `json:"-"`
	Title           string    `json:"title"`
	Department      string    `json:"department"`
	Priority        Priority  `json:"priority"`
	Location        string    `json:"location,omitempty"`
	LinkedInURL     string    `json:"linkedinUrl,omitempty"`
	Source          string    `json:"source"`
	AIScore         float64   `json:"aiScore"`
	Selected        bool      `json:"selected"`
	AutoSelected    bool      `json:"autoSelected"`
	Email           *string   `json:"email"`
	Phone           *string   `json:"phone"`
	ContactEnriched bool      `json:"contactEnriched"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RankScore is the value prospects are ordered by.
func (p Prospect) RankScore() float64 { return p.AIScore * p.Priority.Weight() }
