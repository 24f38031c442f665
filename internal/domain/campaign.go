package domain

import "time"

type CampaignStatus string

const (
	CampaignJobsAdded          CampaignStatus = "jobs_added"
	CampaignCompanyEnriched    CampaignStatus = "company_enriched"
	CampaignProspectsCollected CampaignStatus = "prospects_collected"
	CampaignProspectsSelected  CampaignStatus = "prospects_selected"
	CampaignReadyForOutreach   CampaignStatus = "ready_for_outreach"
)

// stageOrder is the fixed pipeline. Status only moves forward through it.
var stageOrder = []CampaignStatus{
	CampaignJobsAdded,
	CampaignCompanyEnriched,
	CampaignProspectsCollected,
	CampaignProspectsSelected,
	CampaignReadyForOutreach,
}

// Stage returns the position of s in the pipeline, or -1 if s is unknown.
func (s CampaignStatus) Stage() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s CampaignStatus) Valid() bool { return s.Stage() >= 0 }

// AtLeast reports whether s is at or past other in the pipeline.
func (s CampaignStatus) AtLeast(other CampaignStatus) bool {
	return s.Stage() >= other.Stage() && s.Valid()
}

// CanAdvanceTo reports whether moving from s to next is a forward move.
func (s CampaignStatus) CanAdvanceTo(next CampaignStatus) bool {
	return s.Valid() && next.Valid() && next.Stage() > s.Stage()
}

type Campaign struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Status    CampaignStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type JobPosting struct {
	ID          int64     `json:"id"`
	CampaignID  int64     `json:"campaignId"`
	CompanyID   int64     `json:"companyId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Country     string    `json:"country"` // optional filter for prospect search
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}
