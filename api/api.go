// Package api is the HTTP surface the device shell talks to. Every
// protected route is gated on the session record: requests are refused
// while the session is bootstrapping, unauthenticated, or behind a
// biometric cover.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/Muhametii00/calendar/calendar"
	"github.com/Muhametii00/calendar/lifecycle"
	"github.com/Muhametii00/calendar/profile"
	"github.com/Muhametii00/calendar/session"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	controller *session.Controller
	events     *calendar.Store
	profiles   *profile.Store
	feed       *lifecycle.Feed
	audit      *auditLogger
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// New creates a new API instance.
func New(controller *session.Controller, events *calendar.Store, profiles *profile.Store, feed *lifecycle.Feed, opts ...Option) *API {
	a := &API{
		controller: controller,
		events:     events,
		profiles:   profiles,
		feed:       feed,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.Post("/auth/signup", a.SignUp)
	r.Get("/session", a.SessionState)
	r.Post("/lifecycle", a.ReportLifecycle)

	r.Group(func(r chi.Router) {
		r.Use(a.Gate)
		r.Post("/auth/logout", a.Logout)
		r.Post("/auth/biometrics/check", a.CheckBiometrics)
		r.Put("/session/date", a.SelectDate)
		r.Get("/profile", a.GetProfile)

		r.Route("/calendar/{date}", func(r chi.Router) {
			r.Get("/events", a.ListEvents)
			r.Post("/events", a.AddEvent)
			r.Put("/events/{eventID}", a.UpdateEvent)
			r.Delete("/events/{eventID}", a.DeleteEvent)
		})
	})

	return r
}
