package server

import (
	"log/slog"
	"net/http"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/session"
	"sales-dashboard/internal/storage"
)

type Server struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	pageHandlers *handlers.PageHandlers
	sseHandlers  *handlers.SSEHandlers
}

func NewServer(sessions *session.Manager, store *storage.FileStore, logger *slog.Logger) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		logger:       logger,
		apiHandlers:  handlers.NewAPIHandlers(sessions, store, logger),
		pageHandlers: handlers.NewPageHandlers(logger),
		sseHandlers:  handlers.NewSSEHandlers(sessions, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	protected := middleware.RequireAuth(s.logger)
	guard := func(h http.HandlerFunc) http.Handler { return protected(h) }

	// Operational endpoints
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// Public pages and auth actions
	s.mux.HandleFunc("GET /login", s.pageHandlers.HandleLogin)
	s.mux.HandleFunc("GET /register", s.pageHandlers.HandleRegister)
	s.mux.HandleFunc("POST /sse/auth/login", s.sseHandlers.HandleLogin)
	s.mux.HandleFunc("POST /sse/auth/register", s.sseHandlers.HandleRegister)
	s.mux.HandleFunc("POST /sse/auth/logout", s.sseHandlers.HandleLogout)
	s.mux.HandleFunc("POST /sse/theme/toggle", s.sseHandlers.HandleThemeToggle)
	s.mux.HandleFunc("GET /sse/toasts", s.sseHandlers.HandleToastStream)
	s.mux.HandleFunc("POST /sse/toasts/{id}/dismiss", s.sseHandlers.HandleToastDismiss)
	s.mux.HandleFunc("POST /sse/boundary/reset", s.sseHandlers.HandleBoundaryReset)

	// Protected pages
	s.mux.Handle("GET /{$}", guard(s.pageHandlers.HandleDashboard))
	s.mux.Handle("GET /upload", guard(s.pageHandlers.HandleUpload))
	s.mux.Handle("GET /forecast", guard(s.pageHandlers.HandleForecast))
	s.mux.Handle("GET /transform", guard(s.pageHandlers.HandleTransform))
	s.mux.Handle("GET /export", guard(s.apiHandlers.HandleExport))

	// Datastar SSE actions
	s.mux.Handle("GET /sse/dashboard/load", guard(s.sseHandlers.HandleDashboardLoad))
	s.mux.Handle("POST /sse/dashboard/range/{days}", guard(s.sseHandlers.HandleDashboardRange))
	s.mux.Handle("POST /sse/dashboard/custom/open", guard(s.sseHandlers.HandleCustomRangeOpen))
	s.mux.Handle("POST /sse/dashboard/custom/apply", guard(s.sseHandlers.HandleCustomRangeApply))
	s.mux.Handle("POST /sse/dashboard/custom/cancel", guard(s.sseHandlers.HandleCustomRangeCancel))
	s.mux.Handle("POST /sse/dashboard/anomalies/{state}", guard(s.sseHandlers.HandleAnomalies))
	s.mux.Handle("POST /sse/dashboard/insights", guard(s.sseHandlers.HandleInsights))
	s.mux.Handle("POST /sse/drawer/open", guard(s.sseHandlers.HandleDrawerOpen))
	s.mux.Handle("POST /sse/drawer/close", guard(s.sseHandlers.HandleDrawerClose))
	s.mux.Handle("GET /sse/forecast/load", guard(s.sseHandlers.HandleForecastLoad))
	s.mux.Handle("POST /sse/forecast/period/{days}", guard(s.sseHandlers.HandleForecastPeriod))
	s.mux.Handle("POST /sse/upload/select", guard(s.sseHandlers.HandleUploadSelect))
	s.mux.Handle("POST /sse/upload", guard(s.sseHandlers.HandleUpload))
	s.mux.Handle("POST /sse/upload/report/toggle", guard(s.sseHandlers.HandleReportToggle))
	s.mux.Handle("POST /sse/transform/file", guard(s.sseHandlers.HandleTransformFile))
	s.mux.Handle("POST /sse/transform/rename", guard(s.sseHandlers.HandleRename))
	s.mux.Handle("POST /sse/transform/category", guard(s.sseHandlers.HandleCategoryMapping))
	s.mux.Handle("POST /sse/transform/computed", guard(s.sseHandlers.HandleComputedField))
	s.mux.Handle("POST /sse/transform/preview", guard(s.sseHandlers.HandleTransformPreview))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// NewHandler wraps the routes in the middleware chain, outermost first.
func NewHandler(cfg *config.Config, sessions *session.Manager, store *storage.FileStore, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
		middleware.Session(sessions),
	)
	return chain(NewServer(sessions, store, logger))
}
