// Package auth holds the signed-in user for one browser session.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/storage"
)

const (
	loginFailed    = "Login failed"
	registerFailed = "Registration failed"
)

// State tracks the current token and user and mirrors both into durable
// storage. The zero value is not usable; call New.
type State struct {
	store      storage.Storage
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.RWMutex
	token string
	user  *models.User
}

// New hydrates from store. Both the token and the user record must be
// present; either one alone leaves the session signed out.
func New(store storage.Storage, baseURL string, httpClient *http.Client, logger *slog.Logger) *State {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &State{
		store:      store,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}

	token, hasToken := store.GetItem(storage.KeyToken)
	raw, hasUser := store.GetItem(storage.KeyUser)
	if !hasToken || !hasUser || token == "" {
		return s
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		logger.Warn("discarding unreadable stored user", "error", err)
		return s
	}
	s.token = token
	s.user = &user
	return s
}

func (s *State) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/auth/login", loginFailed, email, password)
}

func (s *State) Register(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/auth/register", registerFailed, email, password)
}

// Logout forgets the user in memory and in storage.
func (s *State) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	return s.store.RemoveItem(storage.KeyToken, storage.KeyUser)
}

func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed-in user, or nil.
func (s *State) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// TokenExpiry reads the exp claim without checking the signature. It is a
// display hint only.
func (s *State) TokenExpiry() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (s *State) authenticate(ctx context.Context, path, failure, email, password string) error {
	logger := observability.Scoped(ctx, s.logger)

	payload, err := json.Marshal(models.Credentials{Email: email, Password: password})
	if err != nil {
		return apperrors.InternalWrap(err, "encode credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperrors.InternalWrap(err, "build auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Warn("auth request failed", "path", path, "error", err)
		return apperrors.Network(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Network(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Info("auth rejected", "path", path, "status", resp.StatusCode)
		return apperrors.Upstream(resp.StatusCode, failureMessage(resp.StatusCode, body, failure))
	}

	var out models.AuthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return apperrors.InternalWrap(err, "decode auth response")
	}

	user := models.User{ID: out.UserID, Email: out.Email}
	if err := s.persist(out.AccessToken, user); err != nil {
		return apperrors.InternalWrap(err, "persist session")
	}

	logger.Info("signed in", "path", path, "user_id", user.ID)
	return nil
}

func (s *State) persist(token string, user models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.store.SetItem(storage.KeyToken, token); err != nil {
		return err
	}
	if err := s.store.SetItem(storage.KeyUser, string(raw)); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()
	return nil
}

// failureMessage picks detail, then message, then the operation's own
// failure text. A body that is not JSON yields the status line.
func failureMessage(status int, body []byte, failure string) string {
	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apperrors.Upstream(status, "").Message
	}

	var detail string
	if len(parsed.Detail) > 0 && json.Unmarshal(parsed.Detail, &detail) == nil && detail != "" {
		return detail
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return failure
}
