package adapthttp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trainschedule/internal/app"
)

// Options configures the ambient behaviour of a Server.
type Options struct {
	AllowedOrigins []string
	// AuthRateLimit is the number of /auth requests allowed per client IP per minute.
	AuthRateLimit int
	// FrontendURL is where the SSO callback sends the browser afterwards.
	FrontendURL string
	// Registry receives the HTTP collectors and is served on /metrics.
	Registry *prometheus.Registry
	Logger   zerolog.Logger
	OIDC     *OIDC
	// Ready reports whether backing storage is reachable.
	Ready func(ctx context.Context) error
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth      *app.AuthService
	stations  *app.StationService
	schedules *app.ScheduleService
	opts      Options
	log       zerolog.Logger
	metrics   *httpMetrics

	disableAuth bool
}

// New creates a Server wired to the given application services.
func New(auth *app.AuthService, stations *app.StationService, schedules *app.ScheduleService, opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = 20
	}
	return &Server{
		auth:      auth,
		stations:  stations,
		schedules: schedules,
		opts:      opts,
		log:       opts.Logger,
		metrics:   newHTTPMetrics(opts.Registry),
	}
}

// WithoutAuth disables bearer checks on mutating routes. Tests only.
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.opts.AuthRateLimit, time.Minute))
		r.Use(withNoCache)
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Get("/config", s.handleConfig)
		r.Get("/sso/login", s.handleSSOLogin)
		r.Get("/sso/callback", s.handleSSOCallback)
		r.With(s.authMiddleware).Get("/me", s.handleMe)
	})

	r.Route("/stations", func(r chi.Router) {
		r.Get("/", s.handleListStations)
		r.Get("/search/name", s.handleSearchStations)
		r.Get("/{id}", s.handleGetStation)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/", s.handleCreateStation)
			r.Put("/{id}", s.handleUpdateStation)
			r.Patch("/{id}", s.handleUpdateStation)
			r.Delete("/{id}", s.handleDeleteStation)
		})
	})

	r.Route("/train-schedules", func(r chi.Router) {
		r.Get("/", s.handleListSchedules)
		r.Get("/{id}", s.handleGetSchedule)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/", s.handleCreateSchedule)
			r.Put("/{id}", s.handleUpdateSchedule)
			r.Patch("/{id}", s.handleUpdateSchedule)
			r.Delete("/{id}", s.handleDeleteSchedule)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	return otelhttp.NewHandler(r, "trainschedule")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
