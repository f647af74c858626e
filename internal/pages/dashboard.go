package pages

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const (
	DefaultRangeDays = 30

	msgDashboardLoaded  = "Dashboard data loaded successfully"
	msgDashboardFailed  = "Failed to load dashboard data"
	msgWaitForData      = "Please wait for dashboard data to load"
	msgInsightsReady    = "AI insights generated successfully"
	msgInsightsFailed   = "Failed to generate insights"
	msgAnomaliesFailed  = "Failed to load anomalies"
	msgInvalidDateRange = "Choose a range between 1 and 365 days"
)

// RangePicker is the state of the date range control.
type RangePicker struct {
	Custom bool
	Start  string
	End    string
}

type DashboardView struct {
	Phase      Phase
	RangeDays  int
	Presets    []int
	Picker     RangePicker
	Revenue    *models.RevenueResponse
	Categories *models.CategoryResponse
	Customers  *models.CustomerStatsResponse
	Metrics    services.DashboardMetrics
	Legend     []services.LegendEntry
	Overlay    []services.OverlayPoint

	ShowAnomalies    bool
	AnomaliesLoading bool
	Anomalies        *models.AnomalyResponse

	Insights        string
	InsightsLoading bool
	CanGenerate     bool
}

// Dashboard loads revenue, categories and customer stats together and
// layers the optional anomaly overlay and AI insights on top.
type Dashboard struct {
	api    DashboardAPI
	toasts Notifier
	logger *slog.Logger

	mu         sync.Mutex
	seq        uint64
	phase      Phase
	rangeDays  int
	picker     RangePicker
	revenue    *models.RevenueResponse
	categories *models.CategoryResponse
	customers  *models.CustomerStatsResponse

	showAnomalies     bool
	anomalySeq        uint64
	anomaliesLoading  bool
	anomalies         *models.AnomalyResponse
	anomalyErrorShown bool

	insightsSeq     uint64
	insightsLoading bool
	insights        string
}

func NewDashboard(api DashboardAPI, toasts Notifier, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		api:       api,
		toasts:    toasts,
		logger:    logger,
		phase:     Idle,
		rangeDays: DefaultRangeDays,
	}
}

// Load fetches the three datasets concurrently. Any failure leaves all
// three nil and shows a single toast.
func (d *Dashboard) Load(ctx context.Context, rangeDays int) {
	logger := observability.Scoped(ctx, d.logger)

	d.mu.Lock()
	d.seq++
	id := d.seq
	d.rangeDays = rangeDays
	d.phase = Loading
	d.mu.Unlock()

	var (
		g         errgroup.Group
		revenue   *models.RevenueResponse
		category  *models.CategoryResponse
		customers *models.CustomerStatsResponse
	)
	g.Go(func() error {
		var err error
		revenue, err = d.api.Revenue(ctx, rangeDays)
		return err
	})
	g.Go(func() error {
		var err error
		category, err = d.api.SalesByCategory(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = d.api.CustomerStats(ctx)
		return err
	})
	err := g.Wait()

	d.mu.Lock()
	if id != d.seq {
		d.mu.Unlock()
		logger.Debug("dropping superseded dashboard response", "range_days", rangeDays)
		return
	}
	if err != nil {
		d.revenue, d.categories, d.customers = nil, nil, nil
		d.phase = Failed
	} else {
		d.revenue, d.categories, d.customers = revenue, category, customers
		d.phase = Success
	}
	d.mu.Unlock()

	if err != nil {
		logger.Warn("dashboard load failed", "range_days", rangeDays, "error", err)
		d.toasts.Error(apperrors.UserMessage(err, msgDashboardFailed))
		return
	}

	d.toasts.Success(msgDashboardLoaded)
	d.loadAnomalies(ctx)
}

// SetRange switches to a preset range. The same range is only refetched
// after a failure.
func (d *Dashboard) SetRange(ctx context.Context, rangeDays int) {
	d.mu.Lock()
	d.picker = RangePicker{}
	unchanged := rangeDays == d.rangeDays && d.phase != Failed && d.phase != Idle
	d.mu.Unlock()

	if unchanged {
		return
	}
	d.Load(ctx, rangeDays)
}

// OpenCustomRange shows the custom inputs prefilled with the current
// range ending today.
func (d *Dashboard) OpenCustomRange(today time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.picker = RangePicker{
		Custom: true,
		Start:  today.AddDate(0, 0, -d.rangeDays).Format(time.DateOnly),
		End:    today.Format(time.DateOnly),
	}
}

// ApplyCustomRange loads the span between start and end when it is a
// valid range. The picker stays open otherwise.
func (d *Dashboard) ApplyCustomRange(ctx context.Context, start, end string) bool {
	from, errFrom := time.Parse(time.DateOnly, start)
	to, errTo := time.Parse(time.DateOnly, end)

	d.mu.Lock()
	d.picker.Start, d.picker.End = start, end
	d.mu.Unlock()

	if errFrom != nil || errTo != nil {
		d.toasts.Info(msgInvalidDateRange)
		return false
	}
	days, ok := services.CustomRangeDays(from, to)
	if !ok {
		d.toasts.Info(msgInvalidDateRange)
		return false
	}

	d.SetRange(ctx, days)
	return true
}

// CancelCustomRange closes the custom inputs and returns to the default
// range.
func (d *Dashboard) CancelCustomRange(ctx context.Context) {
	d.SetRange(ctx, DefaultRangeDays)
}

// SetShowAnomalies toggles the overlay. Turning it off forgets the
// overlay, abandons any fetch in flight and re-arms the error toast.
func (d *Dashboard) SetShowAnomalies(ctx context.Context, on bool) {
	d.mu.Lock()
	d.showAnomalies = on
	if !on {
		d.anomalySeq++
		d.anomalies = nil
		d.anomaliesLoading = false
		d.anomalyErrorShown = false
	}
	d.mu.Unlock()

	if on {
		d.loadAnomalies(ctx)
	}
}

// loadAnomalies runs only while the toggle is on and revenue is loaded.
func (d *Dashboard) loadAnomalies(ctx context.Context) {
	d.mu.Lock()
	if !d.showAnomalies || d.revenue == nil {
		d.mu.Unlock()
		return
	}
	d.anomalySeq++
	id := d.anomalySeq
	rangeDays := d.rangeDays
	d.anomaliesLoading = true
	d.mu.Unlock()

	resp, err := d.api.Anomalies(ctx, rangeDays)

	d.mu.Lock()
	if id != d.anomalySeq {
		d.mu.Unlock()
		return
	}
	d.anomaliesLoading = false
	if err == nil {
		d.anomalies = resp
		d.anomalyErrorShown = false
		d.mu.Unlock()
		return
	}

	d.anomalies = nil
	silent := d.anomalyErrorShown
	d.anomalyErrorShown = true
	d.mu.Unlock()

	observability.Scoped(ctx, d.logger).Warn("anomaly load failed", "error", err, "suppressed", silent)
	if !silent {
		d.toasts.Error(apperrors.UserMessage(err, msgAnomaliesFailed))
	}
}

// GenerateInsights asks the backend for a narrative over the loaded data.
func (d *Dashboard) GenerateInsights(ctx context.Context) {
	d.mu.Lock()
	if d.revenue == nil || d.categories == nil || d.customers == nil {
		d.mu.Unlock()
		d.toasts.Info(msgWaitForData)
		return
	}
	req := models.InsightsRequest{
		Revenue:      d.revenue.Data,
		Categories:   d.categories.Categories,
		TopCustomers: d.customers.TopCustomers,
		Period:       services.PeriodText(d.rangeDays),
	}
	d.insightsSeq++
	id := d.insightsSeq
	d.insightsLoading = true
	d.mu.Unlock()

	resp, err := d.api.GenerateInsights(ctx, req)

	d.mu.Lock()
	if id != d.insightsSeq {
		d.mu.Unlock()
		return
	}
	d.insightsLoading = false
	if err == nil {
		d.insights = resp.Insights
	}
	d.mu.Unlock()

	if err != nil {
		observability.Scoped(ctx, d.logger).Warn("insights failed", "error", err)
		d.toasts.Error(apperrors.UserMessage(err, msgInsightsFailed))
		return
	}
	d.toasts.Success(msgInsightsReady)
}

// View is a snapshot for rendering.
func (d *Dashboard) View() DashboardView {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := DashboardView{
		Phase:            d.phase,
		RangeDays:        d.rangeDays,
		Presets:          services.RangePresets,
		Picker:           d.picker,
		Revenue:          d.revenue,
		Categories:       d.categories,
		Customers:        d.customers,
		Metrics:          services.Metrics(d.revenue, d.categories, d.customers),
		ShowAnomalies:    d.showAnomalies,
		AnomaliesLoading: d.anomaliesLoading,
		Anomalies:        d.anomalies,
		Insights:         d.insights,
		InsightsLoading:  d.insightsLoading,
		CanGenerate:      !d.insightsLoading && d.revenue != nil && d.categories != nil && d.customers != nil,
	}
	if d.categories != nil {
		v.Legend = services.CategoryLegend(d.categories.Categories)
	}
	if d.revenue != nil {
		var anomalies []models.AnomalyData
		if d.showAnomalies && d.anomalies != nil {
			anomalies = d.anomalies.Anomalies
		}
		v.Overlay = services.AnomalyOverlay(d.revenue.Data, anomalies)
	}
	return v
}
