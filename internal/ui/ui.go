// Package ui renders the dashboard pages and the fragments that Datastar
// patches into them. Markup lives in embedded html/template files; every
// entry point is exposed as a templ.Component.
package ui

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/pages"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/theme"
	"sales-dashboard/internal/toast"
)

const DatastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// Element ids targeted by SSE patches.
const (
	IDMain      = "main"
	IDNav       = "nav"
	IDToasts    = "toasts"
	IDDashboard = "dashboard"
	IDDrawer    = "drawer"
	IDForecast  = "forecast"
	IDUpload    = "upload"
	IDTransform = "transform"
	IDAuthForm  = "auth-form"
)

//go:embed templates/*.html
var files embed.FS

var palette = []string{"#667eea", "#f59e0b", "#10b981", "#ef4444", "#8b5cf6", "#06b6d4", "#ec4899", "#84cc16"}

var funcs = template.FuncMap{
	"datastarURL":     func() string { return DatastarURL },
	"money":           services.Money,
	"amount":          services.Amount,
	"count":           services.Count,
	"reportHeader":    pages.ReportHeader,
	"issueExamples":   pages.IssueExamples,
	"issueCount":      pages.IssueCount,
	"issuePercentage": pages.IssuePercentage,
	"toastIcon":       toastIcon,
	"revenueBars":     revenueBars,
	"forecastBands":   forecastBands,
	"color":           func(i int) string { return palette[i%len(palette)] },
	"width":           func(pct float64) string { return fmt.Sprintf("%.2f", pct) },
	"score":           func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"lines":           lines,
	"cell":            cell,
}

var tmpl = template.Must(template.New("ui").Funcs(funcs).ParseFS(files, "templates/*.html"))

// Signals is the client-side state Datastar keeps on <body>. Actions read
// it back with datastar.ReadSignals.
type Signals struct {
	Theme       string `json:"theme"`
	DrawerType  string `json:"drawerType"`
	DrawerValue string `json:"drawerValue"`
	CustomStart string `json:"customStart"`
	CustomEnd   string `json:"customEnd"`
	RuleKey     string `json:"ruleKey"`
	RuleValue   string `json:"ruleValue"`
	FieldName   string `json:"fieldName"`
	FieldExpr   string `json:"fieldExpr"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// Shell is what the layout needs besides the page body.
type Shell struct {
	Title         string
	Active        string
	Theme         theme.Mode
	Authenticated bool
	User          *models.User
	// Expiry is the formatted token expiry, empty when unknown.
	Expiry string
}

type layoutData struct {
	Shell   Shell
	Signals string
	Toasts  []toast.Toast
	Body    template.HTML
}

// AuthForm is the state of the login or register form.
type AuthForm struct {
	Mode    string
	Error   string
	Pending bool
}

const (
	ModeLogin    = "login"
	ModeRegister = "register"
)

type dashboardPage struct {
	Dashboard pages.DashboardView
	Drawer    pages.DrawerView
}

func fragment(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return tmpl.ExecuteTemplate(w, name, data)
	})
}

// Page renders a full document around body.
func Page(shell Shell, toasts []toast.Toast, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := body.Render(ctx, &buf); err != nil {
			return err
		}
		signals, err := json.Marshal(Signals{Theme: string(shell.Theme)})
		if err != nil {
			return err
		}
		return tmpl.ExecuteTemplate(w, "layout", layoutData{
			Shell:   shell,
			Signals: string(signals),
			Toasts:  toasts,
			Body:    template.HTML(buf.String()),
		})
	})
}

func Nav(shell Shell) templ.Component { return fragment("nav", shell) }

func Toasts(list []toast.Toast) templ.Component { return fragment("toasts", list) }

func Fallback() templ.Component { return fragment("fallback", nil) }

func DashboardPage(d pages.DashboardView, drawer pages.DrawerView) templ.Component {
	return fragment("dashboard-page", dashboardPage{Dashboard: d, Drawer: drawer})
}

func Dashboard(v pages.DashboardView) templ.Component { return fragment("dashboard", v) }

func Drawer(v pages.DrawerView) templ.Component { return fragment("drawer", v) }

func ForecastPage(v pages.ForecastView) templ.Component { return fragment("forecast-page", v) }

func Forecast(v pages.ForecastView) templ.Component { return fragment("forecast", v) }

func UploadPage(v pages.UploadView) templ.Component { return fragment("upload-page", v) }

func Upload(v pages.UploadView) templ.Component { return fragment("upload", v) }

func TransformPage(v pages.TransformView) templ.Component { return fragment("transform-page", v) }

func Transform(v pages.TransformView) templ.Component { return fragment("transform", v) }

func AuthPage(f AuthForm) templ.Component { return fragment("auth-page", f) }

func AuthFormFragment(f AuthForm) templ.Component { return fragment("auth-form", f) }

// String renders c for an SSE patch.
func String(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toastIcon(t toast.Type) string {
	switch t {
	case toast.Success:
		return "✓"
	case toast.Error:
		return "✕"
	default:
		return "ℹ"
	}
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// cell renders one preview value. JSON numbers arrive as float64.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
