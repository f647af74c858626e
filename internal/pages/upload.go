package pages

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

const (
	msgSelectFile   = "Please select a file first"
	msgUploadFailed = "Upload failed"
)

type UploadView struct {
	Phase      Phase
	FileName   string
	FileSize   string
	Uploading  bool
	Result     *models.UploadResponse
	ShowReport bool
	ReportOpen bool
}

type Upload struct {
	api    UploadAPI
	toasts Notifier
	logger *slog.Logger

	mu         sync.Mutex
	seq        uint64
	phase      Phase
	file       *models.File
	uploading  bool
	result     *models.UploadResponse
	reportOpen bool
}

func NewUpload(api UploadAPI, toasts Notifier, logger *slog.Logger) *Upload {
	return &Upload{api: api, toasts: toasts, logger: logger, phase: Idle}
}

// SelectFile replaces the selection and clears the previous result.
func (u *Upload) SelectFile(name string, data []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.seq++
	u.file = &models.File{Name: name, Data: data}
	u.result = nil
	u.reportOpen = false
	u.uploading = false
	u.phase = Idle
}

// Upload sends the selected file. Without a selection nothing is sent.
func (u *Upload) Upload(ctx context.Context) {
	logger := observability.Scoped(ctx, u.logger)

	u.mu.Lock()
	if u.file == nil {
		u.mu.Unlock()
		u.toasts.Info(msgSelectFile)
		return
	}
	u.seq++
	id := u.seq
	file := *u.file
	u.uploading = true
	u.result = nil
	u.reportOpen = false
	u.phase = Loading
	u.mu.Unlock()

	resp, err := u.api.UploadCSV(ctx, file)

	u.mu.Lock()
	current := id == u.seq
	if current {
		u.uploading = false
		if err != nil {
			u.phase = Failed
		} else {
			u.result = resp
			u.phase = Success
		}
	}
	u.mu.Unlock()

	// The backend acted on the upload even when the page has moved on,
	// so the outcome is always reported.
	if err != nil {
		logger.Warn("upload failed", "filename", file.Name, "error", err)
		u.toasts.Error(apperrors.UserMessage(err, msgUploadFailed))
		return
	}
	logger.Info("upload complete", "filename", file.Name, "rows", resp.RowsInserted, "current", current)
	u.toasts.Success(fmt.Sprintf("Successfully uploaded %d rows", resp.RowsInserted))
}

func (u *Upload) ToggleReport() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reportOpen = !u.reportOpen
}

func (u *Upload) View() UploadView {
	u.mu.Lock()
	defer u.mu.Unlock()

	v := UploadView{
		Phase:      u.phase,
		Uploading:  u.uploading,
		Result:     u.result,
		ReportOpen: u.reportOpen,
		FileSize:   fileSizeKB(u.file),
	}
	if u.file != nil {
		v.FileName = u.file.Name
	}
	if u.result != nil {
		v.ShowReport = u.result.NeedsReport()
	}
	return v
}
