package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/storage"
	"sales-dashboard/internal/testutil"
)

func newClient(t *testing.T, backend *testutil.Backend, store storage.Storage) *Client {
	t.Helper()
	return NewClient(backend.URL, backend.Client(), store, observability.Discard())
}

func TestClient_AttachesBearerWhenTokenStored(t *testing.T) {
	backend := testutil.NewBackend(t)
	store := storage.NewMemory().Scope("s1")
	require.NoError(t, store.SetItem(storage.KeyToken, "tok-123"))

	_, err := newClient(t, backend, store).SalesByCategory(context.Background())
	require.NoError(t, err)

	calls := backend.Calls("GET /stats/by-category")
	require.Len(t, calls, 1)
	assert.Equal(t, "Bearer tok-123", calls[0].Header.Get("Authorization"))
}

func TestClient_NoTokenSendsUnauthenticated(t *testing.T) {
	backend := testutil.NewBackend(t)

	_, err := newClient(t, backend, storage.NewMemory().Scope("s1")).CustomerStats(context.Background())
	require.NoError(t, err)

	calls := backend.Calls("GET /stats/customers")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Header.Get("Authorization"))
}

func TestClient_QueryParameters(t *testing.T) {
	backend := testutil.NewBackend(t)
	client := newClient(t, backend, nil)
	ctx := context.Background()

	rev, err := client.Revenue(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, rev.Data, 3)

	_, err = client.Forecast(ctx, 90)
	require.NoError(t, err)

	_, err = client.Anomalies(ctx, DefaultAnomalyRange)
	require.NoError(t, err)

	assert.Equal(t, "7", backend.Calls("GET /stats/revenue")[0].Query.Get("range"))
	assert.Equal(t, "90", backend.Calls("GET /stats/forecast")[0].Query.Get("period"))
	assert.Equal(t, "90", backend.Calls("GET /stats/anomalies")[0].Query.Get("range_days"))
}

func TestClient_SearchSendsOnlySetFilters(t *testing.T) {
	backend := testutil.NewBackend(t)

	resp, err := newClient(t, backend, nil).SearchSales(context.Background(), models.SearchParams{
		Date:   "2024-01-05",
		Limit:  models.Int(1000),
		Offset: models.Int(0),
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)

	calls := backend.Calls("GET /sales/search")
	require.Len(t, calls, 1)
	assert.Equal(t, "date=2024-01-05&limit=1000&offset=0", calls[0].Query.Encode())
}

func TestSearchQuery_AllFields(t *testing.T) {
	q := SearchQuery(models.SearchParams{
		Category:   "Books",
		CustomerID: models.Int(42),
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		MinAmount:  models.Float(10.5),
		MaxAmount:  models.Float(99),
	})

	assert.Equal(t, "Books", q.Get("category"))
	assert.Equal(t, "42", q.Get("customer_id"))
	assert.Equal(t, "2024-01-01", q.Get("start_date"))
	assert.Equal(t, "2024-01-31", q.Get("end_date"))
	assert.Equal(t, "10.5", q.Get("min_amount"))
	assert.Equal(t, "99", q.Get("max_amount"))
	assert.False(t, q.Has("limit"))
	assert.False(t, q.Has("date"))
}

func TestClient_PreviewTransformOmitsEmptyRules(t *testing.T) {
	backend := testutil.NewBackend(t)
	client := newClient(t, backend, nil)
	file := models.File{Name: "sales.csv", Data: []byte("date,amount,category\n")}

	_, err := client.PreviewTransform(context.Background(), file, models.TransformRules{})
	require.NoError(t, err)

	rename := map[string]string{"amount": "total", "date": "day"}
	resp, err := client.PreviewTransform(context.Background(), file, models.TransformRules{
		RenameColumns: rename,
		MapCategories: map[string]string{},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Columns, "total")

	calls := backend.Calls("POST /transform/preview")
	require.Len(t, calls, 2)

	assert.Equal(t, "sales.csv", calls[0].FileName)
	assert.Equal(t, file.Data, calls[0].FileData)
	assert.Empty(t, calls[0].Fields)

	assert.NotContains(t, calls[1].Fields, "map_categories")
	assert.NotContains(t, calls[1].Fields, "computed_fields")
	var sent map[string]string
	require.NoError(t, json.Unmarshal([]byte(calls[1].Fields["rename_columns"]), &sent))
	assert.Equal(t, rename, sent)
}

func TestClient_UploadCSV(t *testing.T) {
	backend := testutil.NewBackend(t)

	resp, err := newClient(t, backend, nil).UploadCSV(context.Background(), models.File{Name: "q1.csv", Data: []byte("a,b\n")})
	require.NoError(t, err)

	assert.Equal(t, 120, resp.RowsInserted)
	assert.True(t, resp.NeedsReport())
	assert.Equal(t, "q1.csv", backend.Calls("POST /upload/csv")[0].FileName)
}

func TestClient_GenerateInsightsBody(t *testing.T) {
	backend := testutil.NewBackend(t)

	req := models.InsightsRequest{
		Revenue:    testutil.SampleRevenue().Data,
		Categories: testutil.SampleCategories().Categories,
		Period:     "30 days",
	}
	resp, err := newClient(t, backend, nil).GenerateInsights(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	calls := backend.Calls("POST /ai/insights")
	require.Len(t, calls, 1)
	assert.Equal(t, "application/json", calls[0].Header.Get("Content-Type"))

	var sent models.InsightsRequest
	require.NoError(t, json.Unmarshal(calls[0].Body, &sent))
	assert.Equal(t, "30 days", sent.Period)
	assert.Len(t, sent.Revenue, 3)
}

func TestClient_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantDetail string
		wantMsg    string
	}{
		{
			name:       "detail field",
			handler:    testutil.Fail(http.StatusBadRequest, "Invalid date format"),
			wantDetail: "Invalid date format",
			wantMsg:    "HTTP 400: Bad Request",
		},
		{
			name: "message field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				testutil.JSON(w, http.StatusForbidden, map[string]string{"message": "not yours"})
			},
			wantDetail: "not yours",
			wantMsg:    "HTTP 403: Forbidden",
		},
		{
			name: "validation list",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				testutil.JSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "field required"}}})
			},
			wantMsg: "HTTP 422: Unprocessable Entity",
		},
		{
			name: "plain text body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream exploded", http.StatusInternalServerError)
			},
			wantMsg: "HTTP 500: Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testutil.NewBackend(t)
			backend.Handle("GET /stats/revenue", tt.handler)

			_, err := newClient(t, backend, nil).Revenue(context.Background(), 30)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.CodeUpstream, appErr.Code)
			assert.Equal(t, tt.wantMsg, appErr.Message)
			assert.Equal(t, tt.wantDetail, apperrors.Detail(err))
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	backend := testutil.NewBackend(t)
	client := newClient(t, backend, nil)
	backend.Close()

	_, err := client.SalesByCategory(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
	assert.Equal(t, apperrors.ConnectMessage, apperrors.UserMessage(err, "Failed to load dashboard data"))
}

func TestClient_ExportSales(t *testing.T) {
	backend := testutil.NewBackend(t)

	export, err := newClient(t, backend, nil).ExportSales(context.Background(), models.SearchParams{Category: "Books"})
	require.NoError(t, err)

	assert.Equal(t, "sales_export_20240105_101500.csv", export.Filename)
	assert.Equal(t, "text/csv", export.ContentType)
	assert.Equal(t, testutil.SampleExportCSV, string(export.Data))
	assert.Equal(t, "Books", backend.Calls("GET /sales/export")[0].Query.Get("category"))
}

func TestClient_ExportWithoutDisposition(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Handle("GET /sales/export", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("id\n"))
	})

	export, err := newClient(t, backend, nil).ExportSales(context.Background(), models.SearchParams{})
	require.NoError(t, err)
	assert.Equal(t, "sales_export.csv", export.Filename)
}

func TestFilenameFromDisposition(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"attachment; filename=sales_export_20240105_120000.csv", "sales_export_20240105_120000.csv"},
		{`attachment; filename="report.csv"`, "report.csv"},
		{`attachment; filename="report.csv"; size=120`, "report.csv"},
		{"attachment; filename*=UTF-8''march.csv", "march.csv"},
		{`attachment; filename="../../etc/passwd"`, "passwd"},
		{"attachment", "sales_export.csv"},
		{"", "sales_export.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, FilenameFromDisposition(tt.header))
		})
	}
}
