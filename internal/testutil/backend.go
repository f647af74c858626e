// Package testutil provides a recording stand-in for the analytics backend.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sales-dashboard/internal/models"
)

// TokenSecret signs the tokens the fake backend hands out.
var TokenSecret = []byte("test-secret")

// RecordedRequest is what the backend saw for one call.
type RecordedRequest struct {
	Method   string
	Path     string
	Query    url.Values
	Header   http.Header
	Body     []byte
	Fields   map[string]string
	FileName string
	FileData []byte
}

// Backend is an httptest server answering the analytics API with canned
// data. Individual routes can be overridden with Handle.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	handlers map[string]http.HandlerFunc
}

func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{handlers: defaultHandlers()}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// Handle replaces the handler for pattern, e.g. "GET /stats/revenue".
func (b *Backend) Handle(pattern string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[pattern] = h
}

// Calls returns the recorded requests matching pattern.
func (b *Backend) Calls(pattern string) []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []RecordedRequest
	for _, r := range b.requests {
		if r.Method+" "+r.Path == pattern {
			out = append(out, r)
		}
	}
	return out
}

// Total is the number of requests received on any route.
func (b *Backend) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	rec := RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
		Fields: map[string]string{},
	}
	readMultipart(r.Header.Get("Content-Type"), body, &rec)

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	h, ok := b.handlers[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	if !ok {
		JSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}
	h(w, r)
}

func readMultipart(contentType string, body []byte, rec *RecordedRequest) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			return
		}
		data, _ := io.ReadAll(part)
		if part.FileName() != "" {
			rec.FileName = part.FileName()
			rec.FileData = data
			continue
		}
		rec.Fields[part.FormName()] = string(data)
	}
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Fail answers with a FastAPI-style error body.
func Fail(status int, detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, status, map[string]string{"detail": detail})
	}
}

// MintToken signs an HS256 token for subject expiring at exp.
func MintToken(subject string, exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString(TokenSecret)
	if err != nil {
		panic(err)
	}
	return signed
}

func defaultHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"POST /auth/login":      authHandler(7, "Incorrect email or password"),
		"POST /auth/register":   authHandler(8, "Email already registered"),
		"GET /stats/revenue":    respond(SampleRevenue()),
		"GET /stats/by-category": respond(SampleCategories()),
		"GET /stats/customers":  respond(SampleCustomers()),
		"GET /stats/forecast":   respond(SampleForecast()),
		"GET /stats/anomalies":  respond(SampleAnomalies()),
		"GET /sales/search":     respond(SampleSearch()),
		"GET /sales/export":     exportHandler,
		"POST /ai/insights": respond(models.InsightsResponse{
			Insights: "Revenue grew 12% over the period.\nElectronics leads all categories.",
			Success:  true,
		}),
		"POST /upload/csv":        respond(SampleUpload()),
		"POST /transform/preview": transformHandler,
	}
}

func respond(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, http.StatusOK, v)
	}
}

// authHandler rejects the password "wrong" and the email
// "taken@example.com"; everything else succeeds.
func authHandler(userID int, rejection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			JSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []string{"invalid body"}})
			return
		}
		if creds.Password == "wrong" || creds.Email == "taken@example.com" {
			JSON(w, http.StatusUnauthorized, map[string]string{"detail": rejection})
			return
		}
		JSON(w, http.StatusOK, models.AuthResponse{
			AccessToken: MintToken(creds.Email, time.Now().Add(time.Hour)),
			TokenType:   "bearer",
			UserID:      userID,
			Email:       creds.Email,
		})
	}
}

func exportHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=sales_export_20240105_101500.csv")
	_, _ = io.WriteString(w, SampleExportCSV)
}

// transformHandler renames columns when rename_columns is sent and
// otherwise echoes the sample preview.
func transformHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"detail": "expected multipart form"})
		return
	}
	if _, _, err := r.FormFile("file"); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"detail": "file is required"})
		return
	}

	resp := SamplePreview()
	if raw := r.FormValue("rename_columns"); raw != "" {
		var rename map[string]string
		if err := json.Unmarshal([]byte(raw), &rename); err != nil {
			JSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid rename_columns"})
			return
		}
		for i, col := range resp.Columns {
			if to, ok := rename[col]; ok {
				resp.Columns[i] = to
				for _, row := range resp.Preview {
					row[to] = row[col]
					delete(row, col)
				}
			}
		}
	}
	JSON(w, http.StatusOK, resp)
}
