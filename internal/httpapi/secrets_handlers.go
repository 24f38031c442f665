package httpapi

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"outreach-engine/internal/config"
	"outreach-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setSecretReq struct {
	Value string `json:"value"`
}

// secretsFor maps the public secret names onto keychain entries, honoring
// account overrides from the config.
func secretsFor(cfg config.Config) map[string]secrets.Secret {
	return map[string]secrets.Secret{
		"directory": secrets.DirectoryAPIKey.WithAccount(cfg.Directory.APIKeyAccount),
		"anthropic": secrets.AnthropicAPIKey.WithAccount(cfg.Scorer.APIKeyAccount),
		"telegram":  secrets.TelegramToken.WithAccount(cfg.Notify.Telegram.TokenAccount),
	}
}

// Status reports which secrets are set, never their values.
func (h SecretsHandler) Status(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	out := map[string]bool{}
	for name, s := range secretsFor(cfg) {
		out[name] = secrets.Has(s)
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	s, ok := secretsFor(cfg)[chi.URLParam(r, "name")]
	if !ok {
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown secret")
		return
	}
	var req setSecretReq
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := secrets.Set(s, req.Value); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
