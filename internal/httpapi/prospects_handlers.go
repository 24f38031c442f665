package httpapi

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/store"
	"outreach-engine/internal/workflow"
)

type ProspectsHandler struct {
	Engine *workflow.Engine
	Log    *zap.Logger
}

type patchProspectReq struct {
	Selected *bool `json:"selected"`
}

// List supports ?company_id=, ?selected=true and ?pending_contacts=true.
func (h ProspectsHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid campaign id")
		return
	}
	f := store.ProspectFilter{
		SelectedOnly:    queryBool(r, "selected"),
		PendingContacts: queryBool(r, "pending_contacts"),
	}
	if raw := r.URL.Query().Get("company_id"); raw != "" {
		cid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cid <= 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid company_id")
			return
		}
		f.CompanyID = cid
	}

	list, err := h.Engine.ListProspects(r.Context(), id, f)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []domain.Prospect{}
	}
	WriteJSON(w, http.StatusOK, list)
}

func (h ProspectsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid prospect id")
		return
	}
	var req patchProspectReq
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Selected == nil {
		writeAPIError(w, r, http.StatusBadRequest, "validation_error", "selected is required", "selected", nil)
		return
	}
	p, err := h.Engine.SetProspectSelected(r.Context(), id, *req.Selected)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}
