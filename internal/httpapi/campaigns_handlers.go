package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/workflow"
)

type CampaignsHandler struct {
	Engine *workflow.Engine
	Log    *zap.Logger
}

type createCampaignReq struct {
	Name string `json:"name"`
}

type campaignDetail struct {
	domain.Campaign
	Companies []domain.Company `json:"companies"`
}

type taskAccepted struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (h CampaignsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCampaignReq
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	c, err := h.Engine.CreateCampaign(r.Context(), req.Name)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

func (h CampaignsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Engine.ListCampaigns(r.Context())
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []domain.Campaign{}
	}
	WriteJSON(w, http.StatusOK, list)
}

func (h CampaignsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	c, err := h.Engine.GetCampaign(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	companies, err := h.Engine.CampaignCompanies(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	if companies == nil {
		companies = []domain.Company{}
	}
	WriteJSON(w, http.StatusOK, campaignDetail{Campaign: c, Companies: companies})
}

func (h CampaignsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	if err := h.Engine.DeleteCampaign(r.Context(), id); err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h CampaignsHandler) AddJob(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	var in workflow.JobInput
	if err := decodeJSON(w, r, &in); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	job, err := h.Engine.AddJob(r.Context(), id, in)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusCreated, job)
}

func (h CampaignsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	jobs, err := h.Engine.ListJobs(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	if jobs == nil {
		jobs = []domain.JobPosting{}
	}
	WriteJSON(w, http.StatusOK, jobs)
}

func (h CampaignsHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	list, err := h.Engine.ListTasks(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []domain.Task{}
	}
	WriteJSON(w, http.StatusOK, list)
}

func (h CampaignsHandler) CollectProspects(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	taskID, err := h.Engine.CollectProspects(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, taskAccepted{TaskID: taskID, Status: "processing"})
}

func (h CampaignsHandler) AutoSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	n, err := h.Engine.AutoSelect(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	c, err := h.Engine.GetCampaign(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"selected": n, "campaign": c})
}

func (h CampaignsHandler) EnrichContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	taskID, err := h.Engine.EnrichContacts(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, taskAccepted{TaskID: taskID, Status: "processing"})
}
