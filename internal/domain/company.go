package domain

import "time"

type EnrichmentStatus string

const (
	EnrichmentPending    EnrichmentStatus = "pending"
	EnrichmentProcessing EnrichmentStatus = "processing"
	EnrichmentCompleted  EnrichmentStatus = "completed"
	EnrichmentFailed     EnrichmentStatus = "failed"
)

type Company struct {
	ID                 int64            `json:"id"`
	Domain             string           `json:"domain"`
	Name               string           `json:"name"`
	EnrichmentStatus   EnrichmentStatus `json:"enrichmentStatus"`
	EnrichmentAttempts int              `json:"enrichmentAttempts"`
	LastError          string           `json:"lastError,omitempty"`
	EmployeeCount      int              `json:"employeeCount"` // 0 = unknown
	Profile            *CompanyProfile  `json:"profile,omitempty"`
	EnrichedAt         *time.Time       `json:"enrichedAt,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// CompanyProfile is the structured output of the enricher. The engine only
// reads the people lists and the employee estimate.
type CompanyProfile struct {
	Name           string   `json:"name,omitempty"`
	Description    string   `json:"description,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	EmployeeCount  int      `json:"employee_count,omitempty"`
	Founders       []Person `json:"founders,omitempty"`
	Leadership     []Person `json:"leadership,omitempty"`
	TargetContacts []Person `json:"target_contacts,omitempty"`
}

type Person struct {
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Location    string   `json:"location,omitempty"`
	LinkedInURL string   `json:"linkedin_url,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}
