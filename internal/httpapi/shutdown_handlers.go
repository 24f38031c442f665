package httpapi

import (
	"crypto/subtle"
	"net"
	"net/http"
)

type ShutdownHandler struct {
	Token string
	Stop  func()
}

// Shutdown stops the engine. Loopback callers with the right
// X-Shutdown-Token only.
func (h ShutdownHandler) Shutdown(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}

	got := r.Header.Get("X-Shutdown-Token")
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
		WriteError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "msg": "shutting down"})
	go h.Stop()
}
