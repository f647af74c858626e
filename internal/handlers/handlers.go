package handlers

import (
	"log/slog"
	"net/http"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/session"
	"sales-dashboard/internal/ui"
)

const (
	Version = "1.0.0"

	expiryLayout = "2006-01-02 15:04"
)

func currentSession(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*session.Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		errors.WriteError(w, logger, errors.Internal("no session on request"), observability.GetRequestID(r.Context()))
		return nil, false
	}
	return s, true
}

func shellFor(s *session.Session, title, active string) ui.Shell {
	shell := ui.Shell{
		Title:         title,
		Active:        active,
		Theme:         s.Theme.Mode(),
		Authenticated: s.Auth.IsAuthenticated(),
		User:          s.Auth.User(),
	}
	if exp, ok := s.Auth.TokenExpiry(); ok {
		shell.Expiry = exp.Local().Format(expiryLayout)
	}
	return shell
}
