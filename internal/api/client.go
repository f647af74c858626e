// Package api is the typed client for the analytics backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/storage"
)

const (
	DefaultRevenueRange  = 30
	DefaultForecastDays  = 30
	DefaultAnomalyRange  = 90
	maxErrorBodyBytes    = 64 << 10
	headerAuthorization  = "Authorization"
	headerContentType    = "Content-Type"
	contentTypeJSON      = "application/json"
	defaultExportName    = "sales_export.csv"
	defaultExportContent = "text/csv"
)

// TokenReader is the slice of durable storage the client needs.
type TokenReader interface {
	GetItem(key string) (string, bool)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenReader
	logger     *slog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, tokens TokenReader, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// UploadCSV posts a sales CSV for ingestion.
func (c *Client) UploadCSV(ctx context.Context, file models.File) (*models.UploadResponse, error) {
	body, contentType, err := multipartBody(file, nil)
	if err != nil {
		return nil, err
	}

	var out models.UploadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/upload/csv", nil, body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Revenue(ctx context.Context, rangeDays int) (*models.RevenueResponse, error) {
	q := url.Values{"range": {strconv.Itoa(rangeDays)}}

	var out models.RevenueResponse
	if err := c.doJSON(ctx, http.MethodGet, "/stats/revenue", q, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SalesByCategory(ctx context.Context) (*models.CategoryResponse, error) {
	var out models.CategoryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/stats/by-category", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CustomerStats(ctx context.Context) (*models.CustomerStatsResponse, error) {
	var out models.CustomerStatsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/stats/customers", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Forecast(ctx context.Context, period int) (*models.ForecastResponse, error) {
	q := url.Values{"period": {strconv.Itoa(period)}}

	var out models.ForecastResponse
	if err := c.doJSON(ctx, http.MethodGet, "/stats/forecast", q, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Anomalies(ctx context.Context, rangeDays int) (*models.AnomalyResponse, error) {
	q := url.Values{"range_days": {strconv.Itoa(rangeDays)}}

	var out models.AnomalyResponse
	if err := c.doJSON(ctx, http.MethodGet, "/stats/anomalies", q, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchSales(ctx context.Context, params models.SearchParams) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sales/search", SearchQuery(params), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateInsights(ctx context.Context, req models.InsightsRequest) (*models.InsightsResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "encode insights request")
	}

	var out models.InsightsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/ai/insights", nil, bytes.NewReader(payload), contentTypeJSON, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PreviewTransform submits file with whichever rule sets are non-empty.
func (c *Client) PreviewTransform(ctx context.Context, file models.File, rules models.TransformRules) (*models.TransformPreviewResponse, error) {
	fields := map[string]map[string]string{
		"rename_columns":  rules.RenameColumns,
		"map_categories":  rules.MapCategories,
		"computed_fields": rules.ComputedFields,
	}

	body, contentType, err := multipartBody(file, fields)
	if err != nil {
		return nil, err
	}

	var out models.TransformPreviewResponse
	if err := c.doJSON(ctx, http.MethodPost, "/transform/preview", nil, body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchQuery encodes the set fields of params.
func SearchQuery(p models.SearchParams) url.Values {
	q := url.Values{}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.CustomerID != nil {
		q.Set("customer_id", strconv.Itoa(*p.CustomerID))
	}
	if p.Date != "" {
		q.Set("date", p.Date)
	}
	if p.StartDate != "" {
		q.Set("start_date", p.StartDate)
	}
	if p.EndDate != "" {
		q.Set("end_date", p.EndDate)
	}
	if p.MinAmount != nil {
		q.Set("min_amount", strconv.FormatFloat(*p.MinAmount, 'f', -1, 64))
	}
	if p.MaxAmount != nil {
		q.Set("max_amount", strconv.FormatFloat(*p.MaxAmount, 'f', -1, 64))
	}
	if p.Limit != nil {
		q.Set("limit", strconv.Itoa(*p.Limit))
	}
	if p.Offset != nil {
		q.Set("offset", strconv.Itoa(*p.Offset))
	}
	return q
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.InternalWrap(err, fmt.Sprintf("decode %s response", path))
	}
	return nil
}

// do sends the request with the stored bearer token attached and turns
// non-2xx answers into *AppError. The caller owns the body on success.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	ctx, span := observability.StartSpan(ctx, method+" "+path)
	defer span.FinishAndLog(observability.Scoped(ctx, c.logger))
	span.SetTag("http.method", method)
	span.SetTag("http.path", path)

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		span.SetError(err)
		return nil, apperrors.InternalWrap(err, "build request")
	}
	req.Header.Set("Accept", contentTypeJSON)
	if contentType != "" {
		req.Header.Set(headerContentType, contentType)
	}
	if c.tokens != nil {
		if token, ok := c.tokens.GetItem(storage.KeyToken); ok && token != "" {
			req.Header.Set(headerAuthorization, "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetError(err)
		return nil, apperrors.Network(err)
	}
	span.SetTag("http.status_code", strconv.Itoa(resp.StatusCode))
	span.SetTag("http.duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		appErr := apperrors.Upstream(resp.StatusCode, readDetail(resp.Body))
		span.SetError(appErr)
		return nil, appErr
	}

	return resp, nil
}

// readDetail pulls a human message out of an error body. FastAPI puts it
// in "detail"; other handlers use "message". Validation errors carry a
// list in "detail" and yield nothing.
func readDetail(r io.Reader) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBodyBytes)).Decode(&body); err != nil {
		return ""
	}

	var detail string
	if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &detail) == nil && detail != "" {
		return detail
	}
	return body.Message
}

func multipartBody(file models.File, jsonFields map[string]map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", apperrors.InternalWrap(err, "create form file")
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", apperrors.InternalWrap(err, "write form file")
	}

	// Fixed order keeps the wire format stable.
	for _, name := range []string{"rename_columns", "map_categories", "computed_fields"} {
		rules := jsonFields[name]
		if len(rules) == 0 {
			continue
		}
		encoded, err := json.Marshal(rules)
		if err != nil {
			return nil, "", apperrors.InternalWrap(err, "encode "+name)
		}
		if err := mw.WriteField(name, string(encoded)); err != nil {
			return nil, "", apperrors.InternalWrap(err, "write "+name)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", apperrors.InternalWrap(err, "close multipart body")
	}
	return &buf, mw.FormDataContentType(), nil
}
