package models

import "fmt"

type RevenueDataPoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

type RevenueResponse struct {
	Data      []RevenueDataPoint `json:"data"`
	RangeDays int                `json:"range_days"`
}

type CategoryData struct {
	Category   string  `json:"category"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
}

type CategoryResponse struct {
	Categories   []CategoryData `json:"categories"`
	TotalRevenue float64        `json:"total_revenue"`
}

type CustomerData struct {
	CustomerID       int     `json:"customerID"`
	TotalSpent       float64 `json:"total_spent"`
	TransactionCount int     `json:"transaction_count"`
}

type CustomerStatsResponse struct {
	TotalCustomers      int            `json:"total_customers"`
	TotalRevenue        float64        `json:"total_revenue"`
	AvgSpentPerCustomer float64        `json:"avg_spent_per_customer"`
	TopCustomers        []CustomerData `json:"top_customers"`
}

// ForecastResponse carries four parallel series indexed by Dates.
type ForecastResponse struct {
	Dates     []string  `json:"dates"`
	Predicted []float64 `json:"predicted"`
	Lower     []float64 `json:"lower"`
	Upper     []float64 `json:"upper"`
}

// Validate reports whether the series are index-aligned.
func (f *ForecastResponse) Validate() error {
	n := len(f.Dates)
	if len(f.Predicted) != n || len(f.Lower) != n || len(f.Upper) != n {
		return fmt.Errorf("forecast series misaligned: dates=%d predicted=%d lower=%d upper=%d",
			n, len(f.Predicted), len(f.Lower), len(f.Upper))
	}
	return nil
}

type AnomalyData struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Score float64 `json:"score"`
}

type AnomalyResponse struct {
	Dates     []string      `json:"dates"`
	Revenue   []float64     `json:"revenue"`
	Anomalies []AnomalyData `json:"anomalies"`
}

type InsightsRequest struct {
	Revenue      []RevenueDataPoint `json:"revenue"`
	Categories   []CategoryData     `json:"categories"`
	TopCustomers []CustomerData     `json:"top_customers"`
	Period       string             `json:"period"`
}

type InsightsResponse struct {
	Insights string `json:"insights"`
	Success  bool   `json:"success"`
}
