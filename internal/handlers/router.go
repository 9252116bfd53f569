package handlers

import (
	"net/http"
	"time"

	"devboard/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	CORSOrigins    []string
	RateLimitRPM   int
	RequestTimeout time.Duration
}

// NewRouter mounts every endpoint. Everything except /health, /metrics, /auth/login
// and /auth/refresh requires a bearer access token.
func NewRouter(h *Handler, authn middleware.Authenticator, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", AuditWarningHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(opts.RateLimitRPM))
	r.Use(middleware.ClientInfo)
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	var onFailure middleware.FailureCounter
	if h.metrics != nil {
		onFailure = func(reason string) { h.metrics.AuthFailures.WithLabelValues(reason).Inc() }
	}
	authenticated := middleware.Authenticate(authn, onFailure)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.With(authenticated).Post("/logout", h.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticated)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Get("/stats", h.TaskStats)
			r.Get("/upcoming", h.UpcomingTasks)
			r.Get("/{id}", h.GetTask)
			r.Patch("/{id}", h.UpdateTask)
			r.Delete("/{id}", h.DeleteTask)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Get("/type/{eventType}", h.ListEventsByType)
			r.Get("/{id}", h.GetEvent)
			r.Patch("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/me", h.Me)
			r.Get("/{id}", h.GetUser)
			r.Patch("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/", h.ListAudit)
			r.Get("/export", h.ExportAudit)
			r.Get("/entity/{type}/{id}", h.AuditByEntity)
			r.Get("/user/{id}", h.AuditByUser)
			r.Get("/action/{action}", h.AuditByAction)
		})
	})

	return r
}
