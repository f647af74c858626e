package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/pages"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/session"
	"sales-dashboard/internal/ui"
)

const (
	// Work slower than this gets its loading state patched in first.
	progressDelay  = 150 * time.Millisecond
	maxUploadBytes = 32 << 20

	msgMissingCredentials = "Please enter your email and password"
)

type SSEHandlers struct {
	sessions *session.Manager
	logger   *slog.Logger
	now      func() time.Time
}

func NewSSEHandlers(sessions *session.Manager, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// action is the common shape of a Datastar request: resolve the session,
// decode input before the stream starts, then answer with patches.
type action struct {
	s   *session.Session
	sse *datastar.ServerSentEventGenerator
	ctx context.Context
	// work outlives the browser request so results land in page state even
	// when the user navigates away mid-fetch.
	work   context.Context
	logger *slog.Logger
}

func (h *SSEHandlers) begin(w http.ResponseWriter, r *http.Request) (*action, bool) {
	s, ok := currentSession(w, r, h.logger)
	if !ok {
		return nil, false
	}
	return &action{
		s:      s,
		sse:    datastar.NewSSE(w, r),
		ctx:    r.Context(),
		work:   context.WithoutCancel(r.Context()),
		logger: observability.Scoped(r.Context(), h.logger),
	}, true
}

func readSignals(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (ui.Signals, bool) {
	var sig ui.Signals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		errors.WriteError(w, logger, errors.BadRequest("unreadable signals"), observability.GetRequestID(r.Context()))
		return sig, false
	}
	return sig, true
}

func readFile(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (name string, data []byte, ok bool) {
	fail := func(msg string) (string, []byte, bool) {
		errors.WriteError(w, logger, errors.BadRequest(msg), observability.GetRequestID(r.Context()))
		return "", nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return fail("expected a multipart form")
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return fail("missing file")
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return fail("unreadable file")
	}
	return hdr.Filename, data, true
}

func pathDays(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string) (int, bool) {
	days, err := strconv.Atoi(r.PathValue(name))
	if err != nil || days <= 0 || days > services.MaxCustomRangeDays {
		errors.WriteError(w, logger, errors.BadRequest(fmt.Sprintf("invalid %s %q", name, r.PathValue(name))), observability.GetRequestID(r.Context()))
		return 0, false
	}
	return days, true
}

// patch sends c through the session's boundary. A failed render replaces
// the page body with the fallback.
func (a *action) patch(c templ.Component) {
	html, failed, err := a.s.Boundary.Patch(a.ctx, c)
	if err != nil {
		a.logger.Error("render patch", "error", err)
		return
	}
	if failed {
		err = a.sse.PatchElements(html, datastar.WithSelectorID(ui.IDMain), datastar.WithModeInner())
	} else {
		err = a.sse.PatchElements(html)
	}
	if err != nil {
		a.logger.Debug("patch elements", "error", err)
	}
}

func (a *action) patchToasts() error {
	return a.sse.PatchElementTempl(ui.Toasts(a.s.Toasts.List()))
}

func (a *action) signals(v any) {
	if err := a.sse.MarshalAndPatchSignals(v); err != nil {
		a.logger.Debug("patch signals", "error", err)
	}
}

// track runs work and patches view when it is done. Slow work also gets
// an intermediate patch showing its loading state.
func (a *action) track(work func(), view func() templ.Component) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("action panicked", "error", r)
			}
		}()
		work()
	}()

	select {
	case <-done:
	case <-time.After(progressDelay):
		a.patch(view())
		<-done
	}
	a.patch(view())
	if err := a.patchToasts(); err != nil {
		a.logger.Debug("patch toasts", "error", err)
	}
}

func (a *action) dashboard() templ.Component { return ui.Dashboard(a.s.Dashboard.View()) }
func (a *action) drawer() templ.Component    { return ui.Drawer(a.s.Drawer.View()) }
func (a *action) forecast() templ.Component  { return ui.Forecast(a.s.Forecast.View()) }
func (a *action) upload() templ.Component    { return ui.Upload(a.s.Upload.View()) }
func (a *action) transform() templ.Component { return ui.Transform(a.s.Transform.View()) }

func (h *SSEHandlers) HandleDashboardLoad(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() {
		a.s.Dashboard.Load(a.work, a.s.Dashboard.View().RangeDays)
	}, a.dashboard)
}

func (h *SSEHandlers) HandleDashboardRange(w http.ResponseWriter, r *http.Request) {
	days, ok := pathDays(w, r, h.logger, "days")
	if !ok {
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Dashboard.SetRange(a.work, days) }, a.dashboard)
}

func (h *SSEHandlers) HandleCustomRangeOpen(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.s.Dashboard.OpenCustomRange(h.now())
	picker := a.s.Dashboard.View().Picker
	a.signals(map[string]string{"customStart": picker.Start, "customEnd": picker.End})
	a.patch(a.dashboard())
}

func (h *SSEHandlers) HandleCustomRangeApply(w http.ResponseWriter, r *http.Request) {
	sig, ok := readSignals(w, r, h.logger)
	if !ok {
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Dashboard.ApplyCustomRange(a.work, sig.CustomStart, sig.CustomEnd) }, a.dashboard)
}

func (h *SSEHandlers) HandleCustomRangeCancel(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Dashboard.CancelCustomRange(a.work) }, a.dashboard)
}

func (h *SSEHandlers) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	var on bool
	switch r.PathValue("state") {
	case "on":
		on = true
	case "off":
	default:
		errors.WriteError(w, h.logger, errors.BadRequest("state must be on or off"), observability.GetRequestID(r.Context()))
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Dashboard.SetShowAnomalies(a.work, on) }, a.dashboard)
}

func (h *SSEHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Dashboard.GenerateInsights(a.work) }, a.dashboard)
}

func (h *SSEHandlers) HandleDrawerOpen(w http.ResponseWriter, r *http.Request) {
	sig, ok := readSignals(w, r, h.logger)
	if !ok {
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() {
		if err := a.s.Drawer.Open(a.work, pages.FilterType(sig.DrawerType), strings.TrimSpace(sig.DrawerValue)); err != nil {
			a.logger.Warn("drawer not opened", "error", err)
		}
	}, a.drawer)
}

func (h *SSEHandlers) HandleDrawerClose(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.s.Drawer.Close()
	a.signals(map[string]string{"drawerType": "", "drawerValue": ""})
	a.patch(a.drawer())
}

func (h *SSEHandlers) HandleForecastLoad(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Forecast.Load(a.work, a.s.Forecast.View().Period) }, a.forecast)
}

func (h *SSEHandlers) HandleForecastPeriod(w http.ResponseWriter, r *http.Request) {
	days, ok := pathDays(w, r, h.logger, "days")
	if !ok {
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Forecast.Load(a.work, days) }, a.forecast)
}

func (h *SSEHandlers) HandleUploadSelect(w http.ResponseWriter, r *http.Request) {
	name, data, ok := readFile(w, r, h.logger)
	if !ok {
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.s.Upload.SelectFile(name, data)
	a.patch(a.upload())
}

// HandleUpload sends the selected file. The form posts the file again;
// a fresh selection in that body wins over the remembered one.
func (h *SSEHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if name, data, ok := peekFile(r); ok {
		s, found := session.FromContext(r.Context())
		if found {
			s.Upload.SelectFile(name, data)
		}
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Upload.Upload(a.work) }, a.upload)
}

func (h *SSEHandlers) HandleReportToggle(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.s.Upload.ToggleReport()
	a.patch(a.upload())
}

func (h *SSEHandlers) HandleTransformFile(w http.ResponseWriter, r *http.Request) {
	name, data, ok := readFile(w, r, h.logger)
	if !ok {
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Transform.SelectFile(a.work, name, data) }, a.transform)
}

func (h *SSEHandlers) HandleRename(w http.ResponseWriter, r *http.Request) {
	h.rule(w, r, func(t *pages.Transform, key, value string) { t.SetRename(key, value) })
}

func (h *SSEHandlers) HandleCategoryMapping(w http.ResponseWriter, r *http.Request) {
	h.rule(w, r, func(t *pages.Transform, key, value string) { t.SetCategoryMapping(key, value) })
}

func (h *SSEHandlers) HandleComputedField(w http.ResponseWriter, r *http.Request) {
	h.rule(w, r, func(t *pages.Transform, key, value string) { t.SetComputedField(key, value) })
}

func (h *SSEHandlers) rule(w http.ResponseWriter, r *http.Request, set func(t *pages.Transform, key, value string)) {
	sig, ok := readSignals(w, r, h.logger)
	if !ok {
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	if key := strings.TrimSpace(sig.RuleKey); key != "" {
		set(a.s.Transform, key, sig.RuleValue)
	}
	a.signals(map[string]string{"ruleKey": "", "ruleValue": "", "fieldName": "", "fieldExpr": ""})
	a.patch(a.transform())
}

func (h *SSEHandlers) HandleTransformPreview(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.track(func() { a.s.Transform.Preview(a.work) }, a.transform)
}

func (h *SSEHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, ui.ModeLogin)
}

func (h *SSEHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, ui.ModeRegister)
}

func (h *SSEHandlers) authenticate(w http.ResponseWriter, r *http.Request, mode string) {
	sig, ok := readSignals(w, r, h.logger)
	if !ok {
		return
	}
	a, ok := h.begin(w, r)
	if !ok {
		return
	}

	email := strings.TrimSpace(sig.Email)
	if email == "" || sig.Password == "" {
		a.patch(ui.AuthFormFragment(ui.AuthForm{Mode: mode, Error: msgMissingCredentials}))
		return
	}

	var err error
	fallback := "Login failed"
	if mode == ui.ModeRegister {
		fallback = "Registration failed"
		err = a.s.Auth.Register(a.work, email, sig.Password)
	} else {
		err = a.s.Auth.Login(a.work, email, sig.Password)
	}
	if err != nil {
		a.logger.Info("authentication failed", "mode", mode, "error", err)
		a.patch(ui.AuthFormFragment(ui.AuthForm{Mode: mode, Error: errors.UserMessage(err, fallback)}))
		return
	}

	a.logger.Info("authenticated", "mode", mode, "user_id", a.s.Auth.User().ID)
	a.signals(map[string]string{"password": ""})
	if err := a.sse.Redirect("/"); err != nil {
		a.logger.Debug("redirect", "error", err)
	}
}

func (h *SSEHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	if err := a.s.Auth.Logout(); err != nil {
		a.logger.Error("logout", "error", err)
	}
	// Page state belongs to the signed-out user; start the next request fresh.
	h.sessions.Forget(a.s.ID)
	if err := a.sse.Redirect("/login"); err != nil {
		a.logger.Debug("redirect", "error", err)
	}
}

func (h *SSEHandlers) HandleThemeToggle(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	mode, err := a.s.Theme.Toggle()
	if err != nil {
		a.logger.Error("persist theme", "error", err)
	}
	a.signals(map[string]string{"theme": string(mode)})
	if err := a.sse.PatchElementTempl(ui.Nav(shellFor(a.s, "", ""))); err != nil {
		a.logger.Debug("patch nav", "error", err)
	}
}

func (h *SSEHandlers) HandleBoundaryReset(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.s.Boundary.Reset()
	if err := a.sse.ExecuteScript("window.location.reload()"); err != nil {
		a.logger.Debug("reload", "error", err)
	}
}

func (h *SSEHandlers) HandleToastDismiss(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	a.s.Toasts.Dismiss(r.PathValue("id"))
	if err := a.patchToasts(); err != nil {
		a.logger.Debug("patch toasts", "error", err)
	}
}

// HandleToastStream keeps the toast stack in sync until the browser goes
// away.
func (h *SSEHandlers) HandleToastStream(w http.ResponseWriter, r *http.Request) {
	a, ok := h.begin(w, r)
	if !ok {
		return
	}
	changes, stop := a.s.Toasts.Subscribe()
	defer stop()

	if err := a.patchToasts(); err != nil {
		return
	}
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-changes:
			if err := a.patchToasts(); err != nil {
				a.logger.Debug("toast stream closed", "error", err)
				return
			}
		}
	}
}

// peekFile reads an optional file from a multipart body.
func peekFile(r *http.Request) (string, []byte, bool) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return "", nil, false
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || hdr.Filename == "" {
		return "", nil, false
	}
	return hdr.Filename, data, true
}
