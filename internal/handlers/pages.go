package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/session"
	"sales-dashboard/internal/ui"
)

const renderTimeout = 10 * time.Second

// PageHandlers render full documents. Data arrives afterwards through the
// SSE actions each page triggers on init.
type PageHandlers struct {
	logger *slog.Logger
}

func NewPageHandlers(logger *slog.Logger) *PageHandlers {
	return &PageHandlers{logger: logger}
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}
	h.render(w, r, s, "Dashboard", "dashboard", ui.DashboardPage(s.Dashboard.View(), s.Drawer.View()))
}

func (h *PageHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}
	h.render(w, r, s, "Upload", "upload", ui.UploadPage(s.Upload.View()))
}

func (h *PageHandlers) HandleForecast(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}
	h.render(w, r, s, "Forecast", "forecast", ui.ForecastPage(s.Forecast.View()))
}

func (h *PageHandlers) HandleTransform(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}
	h.render(w, r, s, "Transform", "transform", ui.TransformPage(s.Transform.View()))
}

func (h *PageHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.auth(w, r, "Login", ui.ModeLogin)
}

func (h *PageHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.auth(w, r, "Register", ui.ModeRegister)
}

func (h *PageHandlers) auth(w http.ResponseWriter, r *http.Request, title, mode string) {
	s, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}
	if s.Auth.IsAuthenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, s, title, mode, ui.AuthPage(ui.AuthForm{Mode: mode}))
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, s *session.Session, title, active string, body templ.Component) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", "no-store")
	page := ui.Page(shellFor(s, title, active), s.Toasts.List(), s.Boundary.Wrap(body))

	templ.Handler(page, templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			observability.Scoped(r.Context(), h.logger).Error("render page", "page", title, "error", err)
			http.Error(w, "render error", http.StatusInternalServerError)
		})
	})).ServeHTTP(w, r.WithContext(ctx))
}
