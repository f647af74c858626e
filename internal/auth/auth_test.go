package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/storage"
	"sales-dashboard/internal/testutil"
)

func newState(t *testing.T, backend *testutil.Backend, store storage.Storage) *State {
	t.Helper()
	return New(store, backend.URL, backend.Client(), observability.Discard())
}

func TestLogin_PersistsTokenAndUser(t *testing.T) {
	backend := testutil.NewBackend(t)
	store := storage.NewMemory().Scope("s1")
	state := newState(t, backend, store)

	require.NoError(t, state.Login(context.Background(), "ana@example.com", "hunter2"))

	assert.True(t, state.IsAuthenticated())
	assert.Equal(t, &models.User{ID: 7, Email: "ana@example.com"}, state.User())

	token, ok := store.GetItem(storage.KeyToken)
	require.True(t, ok)
	assert.Equal(t, state.Token(), token)

	raw, ok := store.GetItem(storage.KeyUser)
	require.True(t, ok)
	var stored models.User
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, models.User{ID: 7, Email: "ana@example.com"}, stored)
}

func TestRegister_BehavesLikeLogin(t *testing.T) {
	backend := testutil.NewBackend(t)
	store := storage.NewMemory().Scope("s1")
	state := newState(t, backend, store)

	require.NoError(t, state.Register(context.Background(), "new@example.com", "pw"))

	assert.True(t, state.IsAuthenticated())
	assert.Equal(t, 8, state.User().ID)
	_, ok := store.GetItem(storage.KeyUser)
	assert.True(t, ok)
}

func TestAuth_RequestsCarryNoBearer(t *testing.T) {
	backend := testutil.NewBackend(t)
	store := storage.NewMemory().Scope("s1")
	require.NoError(t, store.SetItem(storage.KeyToken, "stale"))
	state := newState(t, backend, store)

	require.NoError(t, state.Login(context.Background(), "ana@example.com", "pw"))

	calls := backend.Calls("POST /auth/login")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Header.Get("Authorization"))
	assert.JSONEq(t, `{"email":"ana@example.com","password":"pw"}`, string(calls[0].Body))
}

func TestLogout_ClearsEverything(t *testing.T) {
	backend := testutil.NewBackend(t)
	store := storage.NewMemory().Scope("s1")
	state := newState(t, backend, store)
	require.NoError(t, state.Login(context.Background(), "ana@example.com", "pw"))

	require.NoError(t, state.Logout())

	assert.False(t, state.IsAuthenticated())
	assert.Nil(t, state.User())
	_, hasToken := store.GetItem(storage.KeyToken)
	_, hasUser := store.GetItem(storage.KeyUser)
	assert.False(t, hasToken)
	assert.False(t, hasUser)
}

func TestNew_Hydration(t *testing.T) {
	tests := []struct {
		name  string
		items map[string]string
		want  bool
	}{
		{"both present", map[string]string{storage.KeyToken: "t", storage.KeyUser: `{"id":1,"email":"a@b.c"}`}, true},
		{"token only", map[string]string{storage.KeyToken: "t"}, false},
		{"user only", map[string]string{storage.KeyUser: `{"id":1,"email":"a@b.c"}`}, false},
		{"unreadable user", map[string]string{storage.KeyToken: "t", storage.KeyUser: "{"}, false},
		{"empty", map[string]string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemory().Scope("s1")
			for k, v := range tt.items {
				require.NoError(t, store.SetItem(k, v))
			}

			state := New(store, "http://unused", nil, observability.Discard())
			assert.Equal(t, tt.want, state.IsAuthenticated())
		})
	}
}

func TestLogin_FailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "detail",
			handler: testutil.Fail(http.StatusUnauthorized, "Incorrect email or password"),
			want:    "Incorrect email or password",
		},
		{
			name: "message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				testutil.JSON(w, http.StatusBadRequest, map[string]string{"message": "locked"})
			},
			want: "locked",
		},
		{
			name: "json without either",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				testutil.JSON(w, http.StatusBadRequest, map[string]string{})
			},
			want: "Login failed",
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("<html>down</html>"))
			},
			want: "HTTP 503: Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testutil.NewBackend(t)
			backend.Handle("POST /auth/login", tt.handler)
			store := storage.NewMemory().Scope("s1")
			state := newState(t, backend, store)

			err := state.Login(context.Background(), "ana@example.com", "pw")
			require.Error(t, err)
			assert.Equal(t, tt.want, apperrors.UserMessage(err, "unused"))
			assert.False(t, state.IsAuthenticated())
			_, ok := store.GetItem(storage.KeyToken)
			assert.False(t, ok)
		})
	}
}

func TestRegister_DefaultFailureMessage(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Handle("POST /auth/register", func(w http.ResponseWriter, _ *http.Request) {
		testutil.JSON(w, http.StatusConflict, map[string]any{"detail": nil})
	})

	err := newState(t, backend, storage.NewMemory().Scope("s1")).Register(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, "Registration failed", apperrors.UserMessage(err, "unused"))
}

func TestLogin_NetworkError(t *testing.T) {
	backend := testutil.NewBackend(t)
	state := newState(t, backend, storage.NewMemory().Scope("s1"))
	backend.Close()

	err := state.Login(context.Background(), "ana@example.com", "pw")
	require.Error(t, err)
	assert.Equal(t, "Network error: Could not connect to server", apperrors.UserMessage(err, "unused"))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	store := storage.NewMemory().Scope("s1")
	require.NoError(t, store.SetItem(storage.KeyToken, testutil.MintToken("ana", exp)))
	require.NoError(t, store.SetItem(storage.KeyUser, `{"id":7,"email":"ana@example.com"}`))

	state := New(store, "http://unused", nil, observability.Discard())

	got, ok := state.TokenExpiry()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestTokenExpiry_NeverGatesAuthentication(t *testing.T) {
	store := storage.NewMemory().Scope("s1")
	require.NoError(t, store.SetItem(storage.KeyToken, testutil.MintToken("ana", time.Now().Add(-time.Hour))))
	require.NoError(t, store.SetItem(storage.KeyUser, `{"id":7,"email":"ana@example.com"}`))

	state := New(store, "http://unused", nil, observability.Discard())
	assert.True(t, state.IsAuthenticated())

	require.NoError(t, store.SetItem(storage.KeyToken, "opaque-token"))
	opaque := New(store, "http://unused", nil, observability.Discard())
	assert.True(t, opaque.IsAuthenticated())
	_, ok := opaque.TokenExpiry()
	assert.False(t, ok)
}
