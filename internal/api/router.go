// Package api assembles the HTTP surface of the calendar service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/calsync/internal/api/handlers"
	"github.com/pysugar/calsync/internal/api/middleware"
	"github.com/pysugar/calsync/internal/logging"
)

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Engine    handlers.Engine
	Users     handlers.UserFlagger
	Events    handlers.EventCreator
	Sessions  *middleware.Verifier
	Redirects handlers.Redirects
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Session(d.Sessions))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", handlers.VersionHandler())

		r.Route("/calendar/{provider}", func(r chi.Router) {
			r.Get("/initiate", handlers.InitiateHandler(d.Engine, d.Redirects))
			r.Get("/callback", handlers.CallbackHandler(d.Engine, d.Users, d.Redirects))
			r.Get("/silent", handlers.SilentHandler(d.Engine))
			r.Post("/events", handlers.EventsHandler(d.Events))
		})
	})

	return r
}
