package httpapi

import (
	"database/sql"
	"net"
	"net/http"

	"go.uber.org/zap"
)

type DBHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

// Checkpoint flushes the SQLite WAL. Only loopback callers are allowed.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}

	if _, err := h.DB.ExecContext(r.Context(), `PRAGMA wal_checkpoint(FULL);`); err != nil {
		h.Log.Error("wal checkpoint failed", zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "checkpoint_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
