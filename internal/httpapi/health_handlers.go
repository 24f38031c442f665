package httpapi

import (
	"database/sql"
	"net/http"
	"time"
)

type HealthHandler struct {
	DB *sql.DB
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	}
	if h.DB != nil {
		if err := h.DB.PingContext(r.Context()); err != nil {
			body["ok"] = false
			body["db"] = err.Error()
			WriteJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["db"] = "ok"
	}
	WriteJSON(w, http.StatusOK, body)
}
