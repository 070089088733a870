// Package httpserver exposes the EcoQuest JSON API over chi.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/and161185/ecoquest/internal/metrics"
	"github.com/and161185/ecoquest/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Services are the domain services behind the routes. Assistant and Quests may be nil.
type Services struct {
	Auth        service.AuthService
	Pipeline    *service.Pipeline
	Activities  *service.ActivityService
	Leaderboard *service.LeaderboardService
	Quests      *service.QuestService
	Assistant   *service.AssistantService
}

// Options tune the router.
type Options struct {
	CORSOrigins    []string
	RPS            float64 // zero disables per-IP limiting
	Burst          int
	MaxUploadBytes int64
	Metrics        *metrics.Metrics
	Ready          func(ctx context.Context) error
	Now            func() time.Time
}

type handler struct {
	svc   Services
	log   *zap.Logger
	opts  Options
	now   func() time.Time
	ready func(ctx context.Context) error
}

// NewRouter builds the HTTP handler tree.
func NewRouter(svc Services, opts Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	h := &handler{svc: svc, log: log, opts: opts, now: opts.Now, ready: opts.Ready}
	if h.now == nil {
		h.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if opts.RPS > 0 {
			burst := opts.Burst
			if burst <= 0 {
				burst = 1
			}
			r.Use(NewIPRateLimiter(rate.Limit(opts.RPS), burst, 10*time.Minute).Middleware())
		}

		r.Post("/users/register", h.register)
		r.Post("/users/login", h.login)
		r.Get("/users/{id}", h.profile)
		r.Get("/users/{id}/activities", h.userActivities)
		r.Get("/users/{id}/activities/today", h.todayActivities)

		r.Post("/activities/user", h.activitiesByBody)

		r.Get("/leaderboard", h.leaderboard)

		r.Post("/summarize", h.summarize)
		r.Post("/summarize/ask-eco", h.askEco)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Post("/activities", h.submitActivity)
			r.Post("/activities/{id}/reconcile", h.reconcile)
			r.Post("/users/complete-level", h.completeLevel)
			r.Post("/bonus", h.claimBonus)
		})
	})

	if len(opts.CORSOrigins) == 0 {
		return r
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(opts.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
		handlers.ExposedHeaders([]string{"X-Request-Id"}),
		handlers.AllowCredentials(),
	)
	return cors(r)
}
