package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/session"
	"sales-dashboard/internal/storage"
	"sales-dashboard/internal/testutil"
	"sales-dashboard/internal/theme"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "upstream-1", seen)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 1, RateLimitBurst: 2})
	start := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return start }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per client")

	assert.Zero(t, rl.Sweep(start.Add(time.Minute)))
	assert.Equal(t, 2, rl.Sweep(start.Add(10*time.Minute)))
	assert.Zero(t, rl.Len())
}

func TestRateLimit_Rejects(t *testing.T) {
	rl := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 1, RateLimitBurst: 1})
	h := RateLimit(rl, observability.Discard())(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(config.SecurityConfig{RateLimitRPS: 1, RateLimitBurst: 1})
	for range 5 {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
	assert.Zero(t, rl.Len())
}

func TestTrustedProxy(t *testing.T) {
	h := TrustedProxy(config.SecurityConfig{TrustedProxies: []string{"127.0.0.1"}})

	var ip string
	capture := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { ip = getClientIP(r) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	h(capture).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.9", ip, "untrusted peers cannot spoof")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 127.0.0.1")
	h(capture).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.1", ip)
}

func TestCORS(t *testing.T) {
	h := CORS(config.SecurityConfig{AllowedOrigins: []string{"http://localhost:8084"}})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/sse/theme/toggle", nil)
	req.Header.Set("Origin", "http://localhost:8084")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:8084", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders_AllowDatastarCDN(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders()(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://cdn.jsdelivr.net")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRecovery(t *testing.T) {
	h := Recovery(observability.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func newSessions(t *testing.T, backendURL string) *session.Manager {
	t.Helper()
	m := session.NewManager(session.Deps{
		Store:         storage.NewMemory(),
		BackendURL:    backendURL,
		ToastDuration: time.Minute,
		DefaultTheme:  theme.Light,
		Logger:        observability.Discard(),
	}, config.SessionConfig{CookieName: "sid", IdleTTL: time.Hour})
	t.Cleanup(m.Close)
	return m
}

func TestRequireAuth(t *testing.T) {
	backend := testutil.NewBackend(t)
	sessions := newSessions(t, backend.URL)
	h := Chain(Session(sessions), RequireAuth(observability.Discard()))(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forecast", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/sse/dashboard/insights", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/login")

	s, found := sessions.Get(cookie.Value)
	require.True(t, found)
	require.NoError(t, s.Auth.Login(context.Background(), "ana@example.com", "secret"))

	req = httptest.NewRequest(http.MethodGet, "/forecast", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_PutsIDOnContext(t *testing.T) {
	sessions := newSessions(t, "http://backend.invalid")

	var id string
	var s *session.Session
	h := Session(sessions)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		id = observability.GetSessionID(r.Context())
		s, _ = session.FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, s)
	assert.Equal(t, s.ID, id)
}
