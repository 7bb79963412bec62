package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"communitysite/internal/auth"
	"communitysite/internal/i18n"
	"communitysite/internal/logger"
	"communitysite/internal/milestone"
	"communitysite/internal/service"
	"communitysite/internal/triggers"
)

type API struct {
	Log      *logger.Logger
	Engine   *milestone.Engine
	Triggers *triggers.Set
	I18n     *i18n.Bundle
	// Service is nil when no database is configured; account, sync and
	// contact-storage routes then answer 503.
	Service    *service.Service
	Auth       *auth.Manager
	Origins    []string
	SyncAPIKey string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(a.loggingMiddleware)
	r.Use(a.corsMiddleware)

	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(a.requireAccounts)
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)
		r.With(a.apiKeyMiddleware).Put("/internal/users/{id}/milestones", a.handleInternalSaveMilestones)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(a.visitorMiddleware)

		// Long-lived; kept out of the request timeout.
		r.Get("/milestones/stream", a.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/milestones/menu", a.handleMenu)
			r.Get("/milestones/catalog-size", a.handleCatalogSize)
			r.Post("/milestones/unlock", a.handleUnlock)
			r.Post("/triggers/{name}", a.handleTrigger)

			r.Get("/forms/{schema}/schema", a.handleFormSchema)
			r.Post("/forms/{schema}", a.handleSubmitForm)

			r.Group(func(r chi.Router) {
				r.Use(a.requireAccounts)
				r.Use(a.authMiddleware)
				r.Post("/visitor/link", a.handleLinkVisitor)
				r.Get("/account/milestones", a.handleAccountMilestones)
				r.Put("/account/milestones", a.handleSaveAccountMilestones)
			})
		})
	})

	return r
}
