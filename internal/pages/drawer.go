package pages

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

type FilterType string

const (
	FilterDate     FilterType = "date"
	FilterCategory FilterType = "category"
)

const (
	DrawerPageSize = 1000

	msgSalesFailed = "Failed to load sales data"
)

type DrawerView struct {
	Open        bool
	Title       string
	FilterType  FilterType
	FilterValue string
	Loading     bool
	Error       string
	Sales       []models.Sale
	Total       int
}

// Drawer is the drill-down list behind a clicked chart point or slice.
// Closing it leaves any fetch in flight to land in memory unseen.
type Drawer struct {
	api    SearchAPI
	logger *slog.Logger

	mu          sync.Mutex
	seq         uint64
	open        bool
	filterType  FilterType
	filterValue string
	loading     bool
	err         string
	sales       []models.Sale
	total       int
}

func NewDrawer(api SearchAPI, logger *slog.Logger) *Drawer {
	return &Drawer{api: api, logger: logger}
}

// Open shows the drawer for a filter. It fetches when the drawer was
// closed or the filter changed.
func (d *Drawer) Open(ctx context.Context, filterType FilterType, value string) error {
	if filterType != FilterDate && filterType != FilterCategory {
		return apperrors.BadRequest(fmt.Sprintf("unknown filter type %q", filterType))
	}
	if value == "" {
		return apperrors.BadRequest("filter value is required")
	}

	d.mu.Lock()
	refetch := !d.open || filterType != d.filterType || value != d.filterValue
	d.open = true
	d.filterType = filterType
	d.filterValue = value
	if !refetch {
		d.mu.Unlock()
		return nil
	}
	d.seq++
	id := d.seq
	d.loading = true
	d.err = ""
	d.mu.Unlock()

	params := models.SearchParams{Limit: models.Int(DrawerPageSize), Offset: models.Int(0)}
	if filterType == FilterDate {
		params.Date = value
	} else {
		params.Category = value
	}

	resp, err := d.api.SearchSales(ctx, params)

	d.mu.Lock()
	defer d.mu.Unlock()
	if id != d.seq {
		return nil
	}
	d.loading = false
	if err != nil {
		observability.Scoped(ctx, d.logger).Warn("sales search failed", "filter", filterType, "value", value, "error", err)
		d.err = apperrors.UserMessage(err, msgSalesFailed)
		d.sales, d.total = nil, 0
		return nil
	}
	d.sales, d.total = resp.Results, resp.Total
	return nil
}

func (d *Drawer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
}

func (d *Drawer) View() DrawerView {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return DrawerView{}
	}
	return DrawerView{
		Open:        true,
		Title:       drawerTitle(d.filterType, d.filterValue),
		FilterType:  d.filterType,
		FilterValue: d.filterValue,
		Loading:     d.loading,
		Error:       d.err,
		Sales:       d.sales,
		Total:       d.total,
	}
}

// Snapshot returns the rows held in memory whether or not the drawer is
// open.
func (d *Drawer) Snapshot() ([]models.Sale, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sales, d.total
}

func drawerTitle(ft FilterType, value string) string {
	switch ft {
	case FilterDate:
		return "Transactions on " + value
	case FilterCategory:
		return "Transactions in " + value
	default:
		return "Transaction Details"
	}
}
