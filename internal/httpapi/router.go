package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"outreach-engine/internal/logging"
)

func NewRouter(d Deps) http.Handler {
	log := logging.OrNop(d.Log).Named("http")
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(RequestID, Recover(log), AccessLog(log), Cors)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/health", HealthHandler{DB: d.DB}.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if d.Hub != nil {
		r.Get("/events", EventsHandler{Hub: d.Hub}.ServeSSE)
	}
	if d.DB != nil {
		r.Post("/db/checkpoint", DBHandler{DB: d.DB, Log: log}.Checkpoint)
	}

	if d.ShutdownToken != "" && d.Shutdown != nil {
		r.Post("/shutdown", ShutdownHandler{Token: d.ShutdownToken, Stop: d.Shutdown}.Shutdown)
	}

	// Config and secrets (use CfgVal, NOT a snapshot cfg)
	if d.CfgVal != nil {
		ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg}
		r.Get("/config", ch.Get)
		r.Put("/config", ch.Put)
		r.Get("/config/path", ch.Path)
		r.Get("/config/validate", ch.Validate)

		sh := SecretsHandler{CfgVal: d.CfgVal}
		r.Get("/secrets", sh.Status)
		r.Put("/secrets/{name}", sh.Set)
	}

	if d.Engine == nil {
		return r
	}

	camp := CampaignsHandler{Engine: d.Engine, Log: log}
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", camp.Create)
		r.Get("/", camp.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", camp.Get)
			r.Delete("/", camp.Delete)
			r.Post("/jobs", camp.AddJob)
			r.Get("/jobs", camp.ListJobs)
			r.Get("/tasks", camp.ListTasks)
			r.Get("/prospects", ProspectsHandler{Engine: d.Engine, Log: log}.List)
			r.Post("/prospects/collect", camp.CollectProspects)
			r.Post("/prospects/auto-select", camp.AutoSelect)
			r.Post("/contacts/enrich", camp.EnrichContacts)
		})
	})

	r.Patch("/prospects/{id}", ProspectsHandler{Engine: d.Engine, Log: log}.Patch)

	th := TasksHandler{Engine: d.Engine, Log: log}
	r.Get("/tasks/{id}", th.Get)
	r.Get("/quota", th.Quota)

	co := CompaniesHandler{Engine: d.Engine, Log: log}
	r.Post("/companies/retry-failed", co.RetryFailed)
	r.Get("/companies/{id}", co.Get)
	r.Post("/companies/{id}/retry", co.Retry)

	return r
}
