// Package pages holds the fetch state of each dashboard page for one
// browser session. Every fetch is tagged with a sequence number and a
// response that is no longer the latest for its page is dropped.
package pages

import (
	"context"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

type Phase string

const (
	Idle    Phase = "idle"
	Loading Phase = "loading"
	Success Phase = "success"
	Failed  Phase = "error"
)

// Notifier receives the user-facing outcome of an action.
type Notifier interface {
	Success(message string) string
	Error(message string) string
	Info(message string) string
}

type DashboardAPI interface {
	Revenue(ctx context.Context, rangeDays int) (*models.RevenueResponse, error)
	SalesByCategory(ctx context.Context) (*models.CategoryResponse, error)
	CustomerStats(ctx context.Context) (*models.CustomerStatsResponse, error)
	Anomalies(ctx context.Context, rangeDays int) (*models.AnomalyResponse, error)
	GenerateInsights(ctx context.Context, req models.InsightsRequest) (*models.InsightsResponse, error)
}

type ForecastAPI interface {
	Forecast(ctx context.Context, period int) (*models.ForecastResponse, error)
}

type UploadAPI interface {
	UploadCSV(ctx context.Context, file models.File) (*models.UploadResponse, error)
}

type TransformAPI interface {
	PreviewTransform(ctx context.Context, file models.File, rules models.TransformRules) (*models.TransformPreviewResponse, error)
}

type SearchAPI interface {
	SearchSales(ctx context.Context, params models.SearchParams) (*models.SearchResponse, error)
}

// fileSizeKB renders the selection size the way the file pickers show it.
func fileSizeKB(f *models.File) string {
	if f == nil {
		return ""
	}
	return decimal.NewFromInt(int64(f.Size())).Div(decimal.NewFromInt(1024)).StringFixed(2) + " KB"
}
