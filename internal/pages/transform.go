package pages

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"sync"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

const msgPreviewFailed = "Failed to preview transformations"

type TransformView struct {
	FileName   string
	FileSize   string
	Loading    bool
	Error      string
	Columns    []string
	Categories []string
	Rules      models.TransformRules
	Preview    *models.TransformPreviewResponse
}

// Transform buffers rename, category and computed-field rules and previews
// them against the selected file.
type Transform struct {
	api    TransformAPI
	logger *slog.Logger

	mu         sync.Mutex
	seq        uint64
	file       *models.File
	loading    bool
	err        string
	rename     map[string]string
	categories map[string]string
	computed   map[string]string
	columns    []string
	available  []string
	preview    *models.TransformPreviewResponse
}

func NewTransform(api TransformAPI, logger *slog.Logger) *Transform {
	return &Transform{
		api:        api,
		logger:     logger,
		rename:     map[string]string{},
		categories: map[string]string{},
		computed:   map[string]string{},
	}
}

// SelectFile starts over with a new file and runs a rule-free preview to
// discover its columns and categories. A failure of that preview is only
// logged.
func (t *Transform) SelectFile(ctx context.Context, name string, data []byte) {
	t.mu.Lock()
	t.seq++
	id := t.seq
	t.file = &models.File{Name: name, Data: data}
	file := *t.file
	t.preview = nil
	t.err = ""
	t.rename = map[string]string{}
	t.categories = map[string]string{}
	t.computed = map[string]string{}
	t.columns = nil
	t.available = nil
	t.loading = true
	t.mu.Unlock()

	resp, err := t.api.PreviewTransform(ctx, file, models.TransformRules{})

	t.mu.Lock()
	defer t.mu.Unlock()
	if id != t.seq {
		return
	}
	t.loading = false
	if err != nil {
		observability.Scoped(ctx, t.logger).Warn("auto-preview failed", "filename", name, "error", err)
		return
	}
	if resp.Success && resp.Columns != nil {
		t.columns = resp.Columns
		if len(resp.Preview) > 0 {
			t.available = distinctCategories(resp.Preview)
		}
	}
}

// SetRename maps an original column to a new name. A blank name removes
// the rule.
func (t *Transform) SetRename(column, to string) {
	t.setRule(func() map[string]string { return t.rename }, column, to)
}

func (t *Transform) SetCategoryMapping(category, to string) {
	t.setRule(func() map[string]string { return t.categories }, category, to)
}

func (t *Transform) SetComputedField(field, formula string) {
	t.setRule(func() map[string]string { return t.computed }, field, formula)
}

func (t *Transform) setRule(rules func() map[string]string, key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := rules()
	if strings.TrimSpace(value) == "" {
		delete(m, key)
		return
	}
	m[key] = value
}

// Preview resubmits the file with the buffered rules.
func (t *Transform) Preview(ctx context.Context) {
	t.mu.Lock()
	if t.file == nil {
		t.err = msgSelectFile
		t.mu.Unlock()
		return
	}
	t.seq++
	id := t.seq
	file := *t.file
	rules := t.rulesLocked()
	t.loading = true
	t.err = ""
	t.mu.Unlock()

	resp, err := t.api.PreviewTransform(ctx, file, rules)

	t.mu.Lock()
	defer t.mu.Unlock()
	if id != t.seq {
		return
	}
	t.loading = false
	if err != nil {
		observability.Scoped(ctx, t.logger).Warn("preview failed", "filename", file.Name, "error", err)
		t.err = apperrors.UserMessage(err, msgPreviewFailed)
		return
	}
	t.preview = resp
	if resp.Columns != nil {
		t.columns = resp.Columns
	}
	if len(resp.Preview) > 0 {
		t.available = distinctCategories(resp.Preview)
	}
}

func (t *Transform) rulesLocked() models.TransformRules {
	return models.TransformRules{
		RenameColumns:  maps.Clone(t.rename),
		MapCategories:  maps.Clone(t.categories),
		ComputedFields: maps.Clone(t.computed),
	}
}

func (t *Transform) View() TransformView {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := TransformView{
		FileSize:   fileSizeKB(t.file),
		Loading:    t.loading,
		Error:      t.err,
		Columns:    t.columns,
		Categories: t.available,
		Rules:      t.rulesLocked(),
		Preview:    t.preview,
	}
	if t.file != nil {
		v.FileName = t.file.Name
	}
	return v
}

// distinctCategories scans the "category" field of the rows in order.
func distinctCategories(rows []map[string]any) []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range rows {
		c, ok := row["category"].(string)
		if !ok || c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
