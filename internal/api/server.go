// Package api serves the public calculator and form endpoints and the
// token-protected admin API.
package api

import (
	"net/http"
	"time"

	"github.com/bher20/equotemanager/internal/auth"
	"github.com/bher20/equotemanager/internal/notification"
	"github.com/bher20/equotemanager/internal/quotes"
	"github.com/bher20/equotemanager/internal/rates"
	"github.com/bher20/equotemanager/internal/storage"
	"github.com/bher20/equotemanager/internal/ui"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services behind the router.
type Deps struct {
	Store  storage.Storage
	Rates  *rates.Service
	Quotes *quotes.Service
	Auth   *auth.Service
	Email  *notification.Service
}

type Config struct {
	AllowedOrigins []string
	// SubmitRPS and SubmitBurst throttle form posts per client IP.
	SubmitRPS   float64
	SubmitBurst int
	// FollowupInterval is reported when no schedule override is stored.
	FollowupInterval string
}

type handler struct {
	Deps
	cfg Config
}

// NewRouter builds the HTTP handler for the whole service.
func NewRouter(d Deps, cfg Config) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	h := &handler{Deps: d, cfg: cfg}
	limiter := newIPLimiter(cfg.SubmitRPS, cfg.SubmitBurst, 10*time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.healthz)
	r.Get("/livez", h.livez)
	r.Get("/readyz", h.readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/pricing/calculate", h.calculate)
		r.Get("/pricing/rates", h.currentRates)

		r.With(limiter.Middleware).Post("/quotes", h.submitQuote)
		r.With(limiter.Middleware).Post("/messages", h.submitMessage)
		r.With(limiter.Middleware).Post("/auth/token", h.issueToken)

		r.Route("/admin", func(r chi.Router) {
			r.Use(d.Auth.Middleware)

			perm := d.Auth.RequirePermission
			r.With(perm(auth.ObjLeads, auth.ActRead)).Get("/leads", h.listLeads)
			r.With(perm(auth.ObjLeads, auth.ActRead)).Get("/leads/{id}", h.getLead)
			r.With(perm(auth.ObjLeads, auth.ActWrite)).Patch("/leads/{id}", h.updateLead)
			r.With(perm(auth.ObjLeads, auth.ActRead)).Get("/customers", h.listCustomers)
			r.With(perm(auth.ObjQuotes, auth.ActRead)).Get("/quotes/{id}", h.getQuote)

			r.With(perm(auth.ObjMessages, auth.ActRead)).Get("/messages", h.listMessages)
			r.With(perm(auth.ObjMessages, auth.ActWrite)).Patch("/messages/{id}", h.updateMessage)
			r.With(perm(auth.ObjMessages, auth.ActWrite)).Delete("/messages/{id}", h.deleteMessage)

			r.With(perm(auth.ObjRates, auth.ActRead)).Get("/rates/history", h.ratesHistory)
			r.With(perm(auth.ObjRates, auth.ActWrite)).Put("/rates", h.publishRates)

			r.With(perm(auth.ObjSettings, auth.ActRead)).Get("/settings/email", h.getEmailSettings)
			r.With(perm(auth.ObjSettings, auth.ActWrite)).Put("/settings/email", h.putEmailSettings)
			r.With(perm(auth.ObjSettings, auth.ActWrite)).Post("/settings/email/test", h.testEmailSettings)
			r.With(perm(auth.ObjSettings, auth.ActRead)).Get("/settings/worker", h.getWorkerSettings)
			r.With(perm(auth.ObjSettings, auth.ActWrite)).Put("/settings/worker", h.putWorkerSettings)
		})
	})

	r.Handle("/ui/*", http.StripPrefix("/ui/", ui.Handler()))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusFound)
	})

	return r
}
