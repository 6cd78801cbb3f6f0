package api

import (
	"log/slog"
	"net/http"
	"time"

	"blackout.chat/config"
	"blackout.chat/internal/protect"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(e *protect.Engine, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	h := NewHandler(e, cfg, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(CORS(CORSConfig{
		AllowedOrigins: []string{"127.0.0.1"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health
	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(JSONOnly)

		// Answer submissions get their own, tighter bucket: that is the
		// endpoint guesses arrive on.
		answerMiddleware := func(next http.Handler) http.Handler { return next }
		if cfg.RateLimit.Enabled {
			apiLimiter := NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
			answerLimiter := NewRateLimiter(cfg.RateLimit.AnswerPerMin, time.Minute)

			r.Use(apiLimiter.Middleware)
			answerMiddleware = answerLimiter.Middleware
		}

		r.Post("/messages", h.ScanMessage)

		r.Route("/protected", func(r chi.Router) {
			r.Post("/", h.CreateProtected)
			r.Get("/{handle}/challenge", h.GetChallenge)
			r.With(answerMiddleware).Post("/{handle}/answer", h.SubmitAnswer)
			r.Get("/{handle}/status", h.GetStatus)
		})
	})

	return r
}
