package domain

import (
	"encoding/json"
	"time"
)

type TaskType string

const (
	TaskCompanyEnrichment  TaskType = "company_enrichment"
	TaskProspectCollection TaskType = "prospect_collection"
	TaskContactEnrichment  TaskType = "contact_enrichment"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

func (s TaskStatus) Terminal() bool { return s == TaskCompleted || s == TaskFailed }

type Task struct {
	ID          string          `json:"id"`
	Type        TaskType        `json:"taskType"`
	CampaignID  int64           `json:"campaignId"`
	CompanyID   *int64          `json:"companyId,omitempty"`
	Status      TaskStatus      `json:"status"`
	Progress    int             `json:"progress"`
	Total       int             `json:"total"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}
