package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"opsboard/internal/logger"
	"opsboard/internal/metrics"
	"opsboard/internal/service"
	"opsboard/internal/session"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable it when a reverse proxy sets those headers.
	TrustProxy bool

	auth      *AuthHandler
	incidents *IncidentHandler
	datasets  *DatasetHandler
	tickets   *TicketHandler
	overview  *service.OverviewService

	authSvc  *service.AuthService
	sessions *session.Manager
	store    Pinger

	loginLimiter *RateLimiter
	apiLimiter   *RateLimiter
}

type Services struct {
	Auth      *service.AuthService
	Incidents *service.IncidentService
	Datasets  *service.DatasetService
	Tickets   *service.TicketService
	Overview  *service.OverviewService
}

func NewHandler(svcs Services, sessions *session.Manager, store Pinger, loginLimiter, apiLimiter *RateLimiter) *Handler {
	return &Handler{
		auth:         NewAuthHandler(svcs.Auth, sessions),
		incidents:    NewIncidentHandler(svcs.Incidents),
		datasets:     NewDatasetHandler(svcs.Datasets),
		tickets:      NewTicketHandler(svcs.Tickets),
		overview:     svcs.Overview,
		authSvc:      svcs.Auth,
		sessions:     sessions,
		store:        store,
		loginLimiter: loginLimiter,
		apiLimiter:   apiLimiter,
	}
}

// Router setup
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if h.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	requireSession := RequireSession(h.authSvc, h.sessions)

	r.Route("/auth", func(r chi.Router) {
		r.Use(SessionMiddleware(h.sessions))

		// Brute force protection
		r.With(h.loginLimiter.Middleware).Post("/setup", h.auth.Setup)
		r.With(h.loginLimiter.Middleware).Post("/register", h.auth.Register)
		r.With(h.loginLimiter.Middleware).Post("/login", h.auth.Login)

		r.Post("/logout", h.auth.Logout)
		r.Get("/session", h.auth.Session)
		r.With(requireSession).Post("/password", h.auth.ChangePassword)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.apiLimiter.Middleware)
		r.Use(SessionMiddleware(h.sessions))
		r.Use(requireSession)

		r.Get("/overview", h.Overview)
		r.Mount("/incidents", h.incidents.Routes())
		r.Mount("/datasets", h.datasets.Routes())
		r.Mount("/tickets", h.tickets.Routes())
	})

	return r
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	summary, err := h.overview.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, summary)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logger.Error.Printf("Health check failed: %v", err)
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	OK(w, map[string]string{"status": "ok"})
}
