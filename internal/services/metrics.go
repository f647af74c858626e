package services

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sales-dashboard/internal/models"
)

const (
	MaxCustomRangeDays = 365
	// Legend percentages are shown to one decimal, so anything closer
	// than half of that is the same number on screen.
	legendTolerance = 0.05
)

// RangePresets are the selectable dashboard ranges in days.
var RangePresets = []int{7, 30, 90, 365}

// ForecastPeriods are the selectable forecast horizons in days.
var ForecastPeriods = []int{7, 30, 90}

var printer = message.NewPrinter(language.English)

// DashboardMetrics are the headline numbers derived from fetched data.
type DashboardMetrics struct {
	TotalRevenue   float64
	AverageRevenue float64
	Customers      int
	Categories     int
}

// Metrics derives the headline numbers. Nil inputs contribute zero.
func Metrics(rev *models.RevenueResponse, cats *models.CategoryResponse, cust *models.CustomerStatsResponse) DashboardMetrics {
	var m DashboardMetrics
	if rev != nil {
		m.TotalRevenue = TotalRevenue(rev.Data)
		m.AverageRevenue = AverageRevenue(rev.Data)
	}
	if cats != nil {
		m.Categories = len(cats.Categories)
	}
	if cust != nil {
		m.Customers = cust.TotalCustomers
	}
	return m
}

func TotalRevenue(points []models.RevenueDataPoint) float64 {
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(decimal.NewFromFloat(p.Revenue))
	}
	return sum.InexactFloat64()
}

func AverageRevenue(points []models.RevenueDataPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return TotalRevenue(points) / float64(len(points))
}

// ForecastSummary returns sum(predicted)/N and sum(predicted).
func ForecastSummary(f *models.ForecastResponse) (avg, total float64) {
	if f == nil || len(f.Predicted) == 0 {
		return 0, 0
	}
	sum := decimal.Zero
	for _, v := range f.Predicted {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	total = sum.InexactFloat64()
	return total / float64(len(f.Predicted)), total
}

type LegendEntry struct {
	Category string
	Total    float64
	Percent  float64
	Label    string
	// Mismatch is set when the backend's percentage disagrees with the
	// share computed from the totals.
	Mismatch bool
}

// CategoryLegend labels each category "name (pct%)" with pct computed
// from total over the sum of all totals.
func CategoryLegend(cats []models.CategoryData) []LegendEntry {
	var sum float64
	for _, c := range cats {
		sum += c.Total
	}

	out := make([]LegendEntry, 0, len(cats))
	for _, c := range cats {
		var pct float64
		if sum != 0 {
			pct = c.Total / sum * 100
		}
		out = append(out, LegendEntry{
			Category: c.Category,
			Total:    c.Total,
			Percent:  pct,
			Label:    fmt.Sprintf("%s (%.1f%%)", c.Category, pct),
			Mismatch: math.Abs(pct-c.Percentage) > legendTolerance,
		})
	}
	return out
}

// OverlayPoint is one revenue point with its anomaly, if any.
type OverlayPoint struct {
	Date    string
	Revenue float64
	Anomaly *models.AnomalyData
}

// AnomalyOverlay joins anomalies to the revenue series by date.
// Anomalies whose date is not in the series are dropped.
func AnomalyOverlay(points []models.RevenueDataPoint, anomalies []models.AnomalyData) []OverlayPoint {
	byDate := make(map[string]models.AnomalyData, len(anomalies))
	for _, a := range anomalies {
		if _, seen := byDate[a.Date]; !seen {
			byDate[a.Date] = a
		}
	}

	out := make([]OverlayPoint, len(points))
	for i, p := range points {
		out[i] = OverlayPoint{Date: p.Date, Revenue: p.Revenue}
		if a, ok := byDate[p.Date]; ok {
			out[i].Anomaly = &a
		}
	}
	return out
}

// CustomRangeDays is the whole-day span between start and end, rounded
// up. ok is false unless the span is within (0, 365].
func CustomRangeDays(start, end time.Time) (days int, ok bool) {
	diff := end.Sub(start)
	if diff < 0 {
		diff = -diff
	}
	days = int(math.Ceil(diff.Hours() / 24))
	return days, days > 0 && days <= MaxCustomRangeDays
}

// PeriodText names the range for the insights prompt. Ranges other than
// the 7, 30 and 90 presets are described as a year.
func PeriodText(rangeDays int) string {
	switch rangeDays {
	case 7, 30, 90:
		return fmt.Sprintf("%d days", rangeDays)
	default:
		return "365 days"
	}
}

// Amount renders v with exactly two decimals.
func Amount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Money renders v as dollars with thousands separators.
func Money(v float64) string {
	rounded := decimal.NewFromFloat(v).Round(2).InexactFloat64()
	return printer.Sprintf("$%.2f", rounded)
}

// Count renders n with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}
