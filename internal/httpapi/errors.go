package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"outreach-engine/internal/workflow"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Field     string `json:"field,omitempty"`
		Details   any    `json:"details,omitempty"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeAPIError(w, r, status, code, message, "", nil)
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message, field string, details any) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.Field = field
	e.Error.Details = details
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeEngineError maps workflow errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ve *workflow.ValidationError
	var qe *workflow.QuotaExceededError
	switch {
	case errors.As(err, &ve):
		writeAPIError(w, r, http.StatusBadRequest, "validation_error", ve.Error(), ve.Field, nil)
	case errors.As(err, &qe):
		writeAPIError(w, r, http.StatusTooManyRequests, "quota_exceeded", qe.Error(), "", map[string]int{
			"current":   qe.Current,
			"requested": qe.Requested,
			"limit":     qe.Limit,
		})
	case errors.Is(err, workflow.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, workflow.ErrInvalidStage):
		WriteError(w, r, http.StatusConflict, "invalid_stage", err.Error())
	case errors.Is(err, workflow.ErrTaskInProgress):
		WriteError(w, r, http.StatusConflict, "task_in_progress", err.Error())
	case errors.Is(err, workflow.ErrCompanyBusy):
		WriteError(w, r, http.StatusConflict, "company_busy", err.Error())
	case errors.Is(err, workflow.ErrUnavailable):
		WriteError(w, r, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		log.Error("request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
