// Package api exposes the experiment runner over HTTP. Participant pages
// answer with JSON documents and 303 redirects between steps; researcher
// endpoints are JSON and require a researcher token.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/soaringjerry/maat/internal/logging"
	"github.com/soaringjerry/maat/internal/metrics"
	"github.com/soaringjerry/maat/internal/middleware"
	"github.com/soaringjerry/maat/internal/services"
)

// Services groups the domain services the handlers call.
type Services struct {
	Runs         *services.RunService
	Trials       *services.TrialRunner
	Responses    *services.ResponseService
	Exports      *services.ExportService
	Experiments  *services.ExperimentService
	Participants *services.ParticipantService
	Auth         *services.AuthService
	Analytics    *services.AnalyticsService
}

// Options carries the HTTP-level settings.
type Options struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Authenticator *middleware.Authenticator
	SecureCookies bool
	StaticDir     string
	Commit        string
	BuildTime     string
	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error
}

type handlers struct {
	svc    Services
	opts   Options
	logger *slog.Logger
}

// NewRouter wires every route onto a chi router.
func NewRouter(svc Services, opts Options) (http.Handler, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Authenticator == nil {
		return nil, errors.New("api: authenticator is required")
	}
	h := &handlers{svc: svc, opts: opts, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger, opts.Metrics))
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.NoStore)
	r.Use(middleware.Locale())
	r.Use(opts.Authenticator.WithAuth)

	r.Get("/health", h.health)
	r.Get("/version", h.version)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	// Participant flow.
	r.Get("/participant-login/", h.loginForm)
	r.Post("/participant-login/", h.login)
	r.Get("/instructions/{participant_id}/{experiment_id}/", h.instructions)
	r.Post("/instructions/{participant_id}/{experiment_id}/", h.acceptInstructions)
	r.Get("/start-experiment/{participant_id}/{experiment_id}/", h.startExperiment)
	r.Get("/run-trial/", h.runTrial)
	r.Post("/save-response/", h.saveResponse)
	r.Get("/experiment-complete/", h.experimentComplete)

	r.Post("/auth/login/", h.researcherLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireResearcher)

		r.Get("/download-responses/", h.downloadResponses)
		r.Get("/download-responses/workbook/", h.downloadWorkbook)
		r.Get("/researcher-dashboard/", h.dashboard)

		r.Get("/experiments/", h.listExperiments)
		r.Post("/experiments/create/", h.createExperiment)
		r.Get("/experiments/configure/{id}/", h.configureExperiment)
		r.Post("/experiments/edit/{id}/", h.editExperiment)
		r.Post("/experiments/delete/{id}/", h.deleteExperiment)
		r.Get("/experiments/summary/{id}/", h.experimentSummary)

		r.Get("/participants/", h.listParticipants)
		r.Post("/register-participant/", h.registerParticipant)
		r.Post("/edit-participant/{id}/", h.editParticipant)
		r.Post("/delete-participant/{id}/", h.deleteParticipant)

		r.Post("/create-trial/", h.createTrial)
		r.Post("/edit-trial/{id}/", h.editTrial)
		r.Post("/delete-trial/{id}/", h.deleteTrial)
	})

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return r, nil
}
