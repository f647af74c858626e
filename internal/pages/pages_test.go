package pages

import (
	"testing"
	"time"

	"sales-dashboard/internal/api"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/testutil"
	"sales-dashboard/internal/toast"
)

type harness struct {
	backend *testutil.Backend
	client  *api.Client
	toasts  *toast.Queue
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := testutil.NewBackend(t)
	toasts := toast.New(time.Minute)
	t.Cleanup(toasts.Close)

	return &harness{
		backend: backend,
		client:  api.NewClient(backend.URL, backend.Client(), nil, observability.Discard()),
		toasts:  toasts,
	}
}

// messages returns the live toast texts oldest first.
func (h *harness) messages() []string {
	var out []string
	for _, t := range h.toasts.List() {
		out = append(out, t.Message)
	}
	return out
}

func (h *harness) lastToast(t *testing.T) toast.Toast {
	t.Helper()
	list := h.toasts.List()
	if len(list) == 0 {
		t.Fatal("no toast shown")
	}
	return list[len(list)-1]
}
