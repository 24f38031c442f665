package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"outreach-engine/internal/workflow"
)

type CompaniesHandler struct {
	Engine *workflow.Engine
	Log    *zap.Logger
}

func (h CompaniesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid company id")
		return
	}
	co, err := h.Engine.GetCompany(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, co)
}

func (h CompaniesHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid company id")
		return
	}
	co, err := h.Engine.RetryCompany(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, co)
}

func (h CompaniesHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.RetryFailedCompanies(r.Context())
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"queued": n})
}
