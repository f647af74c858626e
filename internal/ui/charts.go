package ui

import (
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

type bar struct {
	Date    string
	Value   float64
	Height  float64
	Anomaly *models.AnomalyData
}

// revenueBars scales each point against the largest one. Heights are
// percentages of the chart area.
func revenueBars(points []services.OverlayPoint) []bar {
	var peak float64
	for _, p := range points {
		peak = max(peak, p.Revenue)
	}

	out := make([]bar, len(points))
	for i, p := range points {
		out[i] = bar{Date: p.Date, Value: p.Revenue, Anomaly: p.Anomaly}
		if peak > 0 && p.Revenue > 0 {
			out[i].Height = round2(p.Revenue / peak * 100)
		}
	}
	return out
}

type band struct {
	Date      string
	Predicted float64
	Lower     float64
	Upper     float64
	LowPct    float64
	SpanPct   float64
	PointPct  float64
}

// forecastBands places each prediction and its confidence interval on a
// shared scale running from the lowest lower bound to the highest upper.
func forecastBands(f *models.ForecastResponse) []band {
	if f == nil || f.Validate() != nil || len(f.Dates) == 0 {
		return nil
	}

	lo, hi := f.Lower[0], f.Upper[0]
	for i := range f.Dates {
		lo = min(lo, f.Lower[i], f.Predicted[i])
		hi = max(hi, f.Upper[i], f.Predicted[i])
	}
	scale := hi - lo

	out := make([]band, len(f.Dates))
	for i, d := range f.Dates {
		b := band{Date: d, Predicted: f.Predicted[i], Lower: f.Lower[i], Upper: f.Upper[i]}
		if scale > 0 {
			b.LowPct = round2((f.Lower[i] - lo) / scale * 100)
			b.SpanPct = round2((f.Upper[i] - f.Lower[i]) / scale * 100)
			b.PointPct = round2((f.Predicted[i] - lo) / scale * 100)
		} else {
			b.PointPct = 50
		}
		out[i] = b
	}
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
