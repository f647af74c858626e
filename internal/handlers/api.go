package handlers

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/session"
	"sales-dashboard/internal/storage"
)

const msgExportFailed = "Failed to export data"

type APIHandlers struct {
	sessions *session.Manager
	store    *storage.FileStore
	logger   *slog.Logger
	started  time.Time
}

func NewAPIHandlers(sessions *session.Manager, store *storage.FileStore, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		sessions: sessions,
		store:    store,
		logger:   logger,
		started:  time.Now(),
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   Version,
	}

	errors.WriteSuccessWithHeaders(w, healthData, map[string]string{
		"Cache-Control": "no-store",
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]any{
		"live_sessions":     h.sessions.Len(),
		"stored_sessions":   h.store.Sessions(),
		"storage_encrypted": h.store.IsEncrypted(),
		"uptime":            time.Since(h.started).Round(time.Second).String(),
	})
}

// HandleExport streams the backend's CSV export to the browser as a
// download. Query parameters narrow the export the same way they narrow a
// search.
func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}
	logger := observability.Scoped(r.Context(), h.logger)

	params, err := searchParams(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	export, err := s.API.ExportSales(r.Context(), params)
	if err != nil {
		logger.Error("export sales", "error", err)
		s.Toasts.Error(errors.UserMessage(err, msgExportFailed))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(export.Data); err != nil {
		logger.Debug("write export", "error", err)
	}
	logger.Info("export downloaded", "filename", export.Filename, "bytes", len(export.Data))
}

func searchParams(r *http.Request) (models.SearchParams, error) {
	q := r.URL.Query()
	p := models.SearchParams{
		Category:  q.Get("category"),
		Date:      q.Get("date"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}

	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.BadRequest(fmt.Sprintf("invalid customer_id %q", v))
		}
		p.CustomerID = &id
	}
	for name, dst := range map[string]**float64{"min_amount": &p.MinAmount, "max_amount": &p.MaxAmount} {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return p, errors.BadRequest(fmt.Sprintf("invalid %s %q", name, v))
			}
			*dst = &f
		}
	}
	return p, nil
}
