package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"outreach-engine/internal/workflow"
)

type TasksHandler struct {
	Engine *workflow.Engine
	Log    *zap.Logger
}

func (h TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.Engine.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (h TasksHandler) Quota(w http.ResponseWriter, r *http.Request) {
	u, err := h.Engine.QuotaUsage(r.Context())
	if err != nil {
		writeEngineError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}
