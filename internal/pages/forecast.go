package pages

import (
	"context"
	"log/slog"
	"sync"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const (
	DefaultForecastPeriod = 30

	msgForecastFailed = "Failed to load forecast"
)

type ForecastView struct {
	Phase   Phase
	Period  int
	Periods []int
	Data    *models.ForecastResponse
	Average float64
	Total   float64
}

// Forecast shows at most one error toast per selected period.
type Forecast struct {
	api    ForecastAPI
	toasts Notifier
	logger *slog.Logger

	mu         sync.Mutex
	seq        uint64
	phase      Phase
	period     int
	data       *models.ForecastResponse
	errorShown bool
}

func NewForecast(api ForecastAPI, toasts Notifier, logger *slog.Logger) *Forecast {
	return &Forecast{
		api:    api,
		toasts: toasts,
		logger: logger,
		phase:  Idle,
		period: DefaultForecastPeriod,
	}
}

func (f *Forecast) Load(ctx context.Context, period int) {
	logger := observability.Scoped(ctx, f.logger)

	f.mu.Lock()
	f.seq++
	id := f.seq
	if period != f.period {
		f.errorShown = false
	}
	f.period = period
	f.phase = Loading
	f.mu.Unlock()

	resp, err := f.api.Forecast(ctx, period)
	if err == nil {
		// Misaligned series cannot be charted.
		err = resp.Validate()
	}

	f.mu.Lock()
	if id != f.seq {
		f.mu.Unlock()
		logger.Debug("dropping superseded forecast response", "period", period)
		return
	}
	if err == nil {
		f.data = resp
		f.phase = Success
		f.errorShown = false
		f.mu.Unlock()
		return
	}

	f.data = nil
	f.phase = Failed
	silent := f.errorShown
	f.errorShown = true
	f.mu.Unlock()

	logger.Warn("forecast load failed", "period", period, "error", err, "suppressed", silent)
	if !silent {
		f.toasts.Error(apperrors.UserMessage(err, msgForecastFailed))
	}
}

func (f *Forecast) View() ForecastView {
	f.mu.Lock()
	defer f.mu.Unlock()

	avg, total := services.ForecastSummary(f.data)
	return ForecastView{
		Phase:   f.phase,
		Period:  f.period,
		Periods: services.ForecastPeriods,
		Data:    f.data,
		Average: avg,
		Total:   total,
	}
}
