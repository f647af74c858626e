package pages

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/testutil"
)

func TestForecast_Summary(t *testing.T) {
	h := newHarness(t)
	f := NewForecast(h.client, h.toasts, observability.Discard())

	f.Load(context.Background(), 30)

	v := f.View()
	assert.Equal(t, Success, v.Phase)
	require.NotNil(t, v.Data)
	assert.Equal(t, 250.0, v.Average)
	assert.Equal(t, 1000.0, v.Total)
	assert.Equal(t, []int{7, 30, 90}, v.Periods)
	assert.Equal(t, "30", h.backend.Calls("GET /stats/forecast")[0].Query.Get("period"))
	assert.Empty(t, h.messages(), "a successful forecast is silent")
}

func TestForecast_ErrorToastOncePerPeriod(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("GET /stats/forecast", testutil.Fail(http.StatusBadRequest, "Not enough data for forecasting"))
	f := NewForecast(h.client, h.toasts, observability.Discard())
	ctx := context.Background()

	f.Load(ctx, 30)
	f.Load(ctx, 30)
	assert.Equal(t, []string{"Not enough data for forecasting"}, h.messages())

	v := f.View()
	assert.Equal(t, Failed, v.Phase)
	assert.Nil(t, v.Data)
	assert.Zero(t, v.Total)

	f.Load(ctx, 90)
	assert.Len(t, h.messages(), 2, "a new period re-arms the toast")
}

func TestForecast_SuccessRearmsToast(t *testing.T) {
	h := newHarness(t)
	var fail atomic.Bool
	fail.Store(true)
	h.backend.Handle("GET /stats/forecast", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			testutil.Fail(http.StatusInternalServerError, "")(w, r)
			return
		}
		testutil.JSON(w, http.StatusOK, testutil.SampleForecast())
	})
	f := NewForecast(h.client, h.toasts, observability.Discard())
	ctx := context.Background()

	f.Load(ctx, 30)
	fail.Store(false)
	f.Load(ctx, 30)
	fail.Store(true)
	f.Load(ctx, 30)

	assert.Equal(t, []string{"Failed to load forecast", "Failed to load forecast"}, h.messages())
}

func TestForecast_MisalignedSeriesIsAnError(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("GET /stats/forecast", func(w http.ResponseWriter, _ *http.Request) {
		testutil.JSON(w, http.StatusOK, models.ForecastResponse{
			Dates:     []string{"2024-02-01", "2024-02-02"},
			Predicted: []float64{1},
			Lower:     []float64{1, 2},
			Upper:     []float64{1, 2},
		})
	})
	f := NewForecast(h.client, h.toasts, observability.Discard())

	f.Load(context.Background(), 7)

	assert.Nil(t, f.View().Data)
	assert.Equal(t, []string{"Failed to load forecast"}, h.messages())
}
