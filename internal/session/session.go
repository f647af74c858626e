// Package session holds the per-browser client state: auth, toasts, theme
// and the fetch state of every page. A browser is identified by a cookie;
// its durable items survive a restart through the shared FileStore.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"sales-dashboard/internal/api"
	"sales-dashboard/internal/auth"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/pages"
	"sales-dashboard/internal/storage"
	"sales-dashboard/internal/theme"
	"sales-dashboard/internal/toast"
	"sales-dashboard/internal/ui"
)

const sweepInterval = time.Minute

type Deps struct {
	Store         *storage.FileStore
	BackendURL    string
	HTTPClient    *http.Client
	ToastDuration time.Duration
	DefaultTheme  theme.Mode
	Logger        *slog.Logger
}

type Session struct {
	ID      string
	Storage storage.Storage
	API     *api.Client
	Auth    *auth.State
	Toasts  *toast.Queue
	Theme   *theme.State

	Dashboard *pages.Dashboard
	Forecast  *pages.Forecast
	Upload    *pages.Upload
	Transform *pages.Transform
	Drawer    *pages.Drawer
	Boundary  *ui.Boundary

	mu       sync.Mutex
	lastSeen time.Time
}

func newSession(id string, deps Deps, now time.Time) *Session {
	logger := deps.Logger.With("session_id", id)
	store := deps.Store.Scope(id)
	client := api.NewClient(deps.BackendURL, deps.HTTPClient, store, logger)
	toasts := toast.New(deps.ToastDuration)

	return &Session{
		ID:        id,
		Storage:   store,
		API:       client,
		Auth:      auth.New(store, deps.BackendURL, deps.HTTPClient, logger),
		Toasts:    toasts,
		Theme:     theme.New(store, deps.DefaultTheme),
		Dashboard: pages.NewDashboard(client, toasts, logger),
		Forecast:  pages.NewForecast(client, toasts, logger),
		Upload:    pages.NewUpload(client, toasts, logger),
		Transform: pages.NewTransform(client, logger),
		Drawer:    pages.NewDrawer(client, logger),
		Boundary:  ui.NewBoundary(logger),
		lastSeen:  now,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Manager owns the live sessions. Idle sessions are dropped from memory
// by Sweep; their durable items stay in the store.
type Manager struct {
	deps   Deps
	cfg    config.SessionConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps Deps, cfg config.SessionConfig) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemory()
	}
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		logger:   deps.Logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Resolve returns the session named by the request cookie, creating one
// (and setting the cookie) when there is none. A well-formed id that is
// not live is revived from the durable store.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) *Session {
	now := m.now()

	if c, err := r.Cookie(m.cfg.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			s := m.getOrCreate(id.String(), now)
			s.touch(now)
			return s
		}
	}

	id := uuid.NewString()
	s := m.getOrCreate(id, now)
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

func (m *Manager) getOrCreate(id string, now time.Time) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s = newSession(id, m.deps, now)
	m.sessions[id] = s
	m.logger.Debug("session started", "session_id", id)
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the configured TTL and
// returns how many went.
func (m *Manager) Sweep(now time.Time) int {
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince(now) > m.cfg.IdleTTL {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Toasts.Close()
	}
	if len(idle) > 0 {
		m.logger.Info("swept idle sessions", "count", len(idle), "live", m.Len())
	}
	return len(idle)
}

// Run sweeps until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Forget drops the live session id, e.g. after logout. Its durable items
// stay, so the next request starts over from them.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Toasts.Close()
	}
}

// Close stops every live session's timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Toasts.Close()
		delete(m.sessions, id)
	}
}

type contextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}
