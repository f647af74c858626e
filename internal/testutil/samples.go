package testutil

import "sales-dashboard/internal/models"

const SampleExportCSV = "id,date,amount,category,customerID\n" +
	"1,2024-01-05,120.50,Electronics,42\n" +
	"2,2024-01-05,35.00,Books,7\n"

func SampleRevenue() models.RevenueResponse {
	return models.RevenueResponse{
		Data: []models.RevenueDataPoint{
			{Date: "2024-01-03", Revenue: 1000},
			{Date: "2024-01-04", Revenue: 1500.25},
			{Date: "2024-01-05", Revenue: 9000},
		},
		RangeDays: 30,
	}
}

func SampleCategories() models.CategoryResponse {
	return models.CategoryResponse{
		Categories: []models.CategoryData{
			{Category: "Electronics", Total: 6000, Percentage: 60},
			{Category: "Books", Total: 3000, Percentage: 30},
			{Category: "Toys", Total: 1000, Percentage: 10},
		},
		TotalRevenue: 10000,
	}
}

func SampleCustomers() models.CustomerStatsResponse {
	return models.CustomerStatsResponse{
		TotalCustomers:      25,
		TotalRevenue:        10000,
		AvgSpentPerCustomer: 400,
		TopCustomers: []models.CustomerData{
			{CustomerID: 42, TotalSpent: 2500, TransactionCount: 12},
			{CustomerID: 7, TotalSpent: 1200.5, TransactionCount: 4},
		},
	}
}

func SampleForecast() models.ForecastResponse {
	return models.ForecastResponse{
		Dates:     []string{"2024-02-01", "2024-02-02", "2024-02-03", "2024-02-04"},
		Predicted: []float64{100, 200, 300, 400},
		Lower:     []float64{80, 170, 260, 350},
		Upper:     []float64{120, 230, 340, 450},
	}
}

func SampleAnomalies() models.AnomalyResponse {
	return models.AnomalyResponse{
		Dates:   []string{"2024-01-03", "2024-01-04", "2024-01-05"},
		Revenue: []float64{1000, 1500.25, 9000},
		Anomalies: []models.AnomalyData{
			{Date: "2024-01-05", Value: 9000, Score: 3.4},
		},
	}
}

func SampleSearch() models.SearchResponse {
	return models.SearchResponse{
		Results: []models.Sale{
			{ID: 1, Date: "2024-01-05", Amount: 120.5, Category: "Electronics", CustomerID: 42},
			{ID: 2, Date: "2024-01-05", Amount: 35, Category: "Books", CustomerID: 7},
		},
		Total:  2,
		Limit:  1000,
		Offset: 0,
	}
}

// SampleUpload is 120 rows inserted with three warnings and no errors.
func SampleUpload() models.UploadResponse {
	missing := 2
	return models.UploadResponse{
		Message:      "CSV uploaded",
		RowsInserted: 120,
		Filename:     "q1.csv",
		Warnings: []models.ValidationIssue{
			{
				Type:     "missing_values",
				Message:  "Missing values in amount",
				Severity: models.SeverityWarning,
				Column:   "amount",
				Count:    &missing,
				Examples: []models.IssueExample{
					{Row: models.Int(4)}, {Row: models.Int(9)}, {Row: models.Int(17)}, {Row: models.Int(33)},
				},
			},
			{
				Type:       "outliers",
				Message:    "Unusually large amounts",
				Severity:   models.SeverityWarning,
				Column:     "amount",
				Percentage: models.Float(0.8),
			},
			{
				Type:     "duplicates",
				Message:  "Duplicate rows dropped",
				Severity: models.SeverityWarning,
			},
		},
		Summary: &models.ValidationSummary{
			TotalRows:    123,
			ValidRows:    120,
			WarningCount: 3,
			ErrorCount:   0,
			HasWarnings:  true,
			HasErrors:    false,
		},
	}
}

func SamplePreview() models.TransformPreviewResponse {
	return models.TransformPreviewResponse{
		Preview: []map[string]any{
			{"date": "2024-01-05", "amount": 120.5, "category": "electronics"},
			{"date": "2024-01-05", "amount": 35.0, "category": "books"},
			{"date": "2024-01-06", "amount": 80.0, "category": "electronics"},
			{"date": "2024-01-06", "amount": 12.0, "category": "toys"},
		},
		TotalRows:   40,
		PreviewRows: 4,
		Columns:     []string{"date", "amount", "category"},
		Success:     true,
	}
}
