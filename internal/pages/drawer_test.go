package pages

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/testutil"
)

func TestDrawer_OpenByDateIssuesOneSearch(t *testing.T) {
	h := newHarness(t)
	d := NewDrawer(h.client, observability.Discard())

	require.NoError(t, d.Open(context.Background(), FilterDate, "2024-01-05"))

	calls := h.backend.Calls("GET /sales/search")
	require.Len(t, calls, 1)
	assert.Equal(t, "date=2024-01-05&limit=1000&offset=0", calls[0].Query.Encode())

	v := d.View()
	assert.True(t, v.Open)
	assert.Equal(t, "Transactions on 2024-01-05", v.Title)
	assert.Len(t, v.Sales, 2)
	assert.Equal(t, 2, v.Total)
}

func TestDrawer_OpenByCategory(t *testing.T) {
	h := newHarness(t)
	d := NewDrawer(h.client, observability.Discard())

	require.NoError(t, d.Open(context.Background(), FilterCategory, "Books"))

	assert.Equal(t, "category=Books&limit=1000&offset=0", h.backend.Calls("GET /sales/search")[0].Query.Encode())
	assert.Equal(t, "Transactions in Books", d.View().Title)
}

func TestDrawer_RefetchRules(t *testing.T) {
	h := newHarness(t)
	d := NewDrawer(h.client, observability.Discard())
	ctx := context.Background()

	require.NoError(t, d.Open(ctx, FilterDate, "2024-01-05"))
	require.NoError(t, d.Open(ctx, FilterDate, "2024-01-05"))
	assert.Len(t, h.backend.Calls("GET /sales/search"), 1, "same filter while open")

	require.NoError(t, d.Open(ctx, FilterDate, "2024-01-06"))
	assert.Len(t, h.backend.Calls("GET /sales/search"), 2, "filter changed")

	d.Close()
	assert.False(t, d.View().Open)
	assert.Len(t, h.backend.Calls("GET /sales/search"), 2, "closing fetches nothing")

	require.NoError(t, d.Open(ctx, FilterDate, "2024-01-06"))
	assert.Len(t, h.backend.Calls("GET /sales/search"), 3, "reopening refetches")
}

func TestDrawer_RejectsBadFilters(t *testing.T) {
	h := newHarness(t)
	d := NewDrawer(h.client, observability.Discard())

	require.Error(t, d.Open(context.Background(), "customer", "42"))
	require.Error(t, d.Open(context.Background(), FilterDate, ""))
	assert.Zero(t, h.backend.Total())
	assert.False(t, d.View().Open)
}

func TestDrawer_ErrorMessage(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("GET /sales/search", testutil.Fail(http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD"))
	d := NewDrawer(h.client, observability.Discard())

	require.NoError(t, d.Open(context.Background(), FilterDate, "05/01/2024"))

	v := d.View()
	assert.Equal(t, "Invalid date format. Use YYYY-MM-DD", v.Error)
	assert.Empty(t, v.Sales)

	h.backend.Handle("GET /sales/search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	require.NoError(t, d.Open(context.Background(), FilterDate, "2024-01-05"))
	assert.Equal(t, "Failed to load sales data", d.View().Error)
}

func TestDrawer_LateResultAfterCloseStaysHidden(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.backend.Handle("GET /sales/search", func(w http.ResponseWriter, _ *http.Request) {
		<-release
		testutil.JSON(w, http.StatusOK, testutil.SampleSearch())
	})
	d := NewDrawer(h.client, observability.Discard())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Open(context.Background(), FilterDate, "2024-01-05")
	}()
	require.Eventually(t, func() bool {
		return len(h.backend.Calls("GET /sales/search")) == 1
	}, time.Second, 5*time.Millisecond)

	d.Close()
	close(release)
	<-done

	assert.False(t, d.View().Open)
	sales, total := d.Snapshot()
	assert.Len(t, sales, 2, "the late result still lands in memory")
	assert.Equal(t, 2, total)
}
