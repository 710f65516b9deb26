package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

const maxWorkers = 4

// Logical table names.
const (
	TableOrders      = "orders"
	TableCustomers   = "customers"
	TableGeolocation = "geolocation"
	TableItems       = "order_items"
	TablePayments    = "order_payments"
	TableProducts    = "products"
	TableSellers     = "sellers"
	TableCategories  = "categories"
)

// DefaultTables maps logical names to the physical table (or file) names of
// the Olist export.
func DefaultTables() map[string]string {
	return map[string]string{
		TableOrders:      "orders",
		TableCustomers:   "customers",
		TableGeolocation: "geolocation",
		TableItems:       "order_items",
		TablePayments:    "order_payments",
		TableProducts:    "products",
		TableSellers:     "sellers",
		TableCategories:  "product_category_name_translation",
	}
}

var optionalTables = map[string]bool{
	TableGeolocation: true,
	TableSellers:     true,
}

// Raw holds loaded tables by logical name.
type Raw map[string]*Table

func (r Raw) Diagnostics() []Diagnostics {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Diagnostics, 0, len(names))
	for _, name := range names {
		d := r[name].Diagnostics()
		d.Table = name
		out = append(out, d)
	}
	return out
}

// LoadAll loads every table of the mapping concurrently. Missing optional
// tables are logged and skipped; any other failure aborts the load.
func LoadAll(ctx context.Context, src Source, tables map[string]string, logger *slog.Logger) (Raw, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	var mu sync.Mutex
	raw := make(Raw, len(tables))

	for logical, physical := range tables {
		g.Go(func() error {
			t, err := src.Table(ctx, physical)
			if err != nil {
				if optionalTables[logical] && errors.Is(err, ErrMissingTable) {
					logger.Warn("optional table not found", "table", logical, "error", err)
					return nil
				}
				return fmt.Errorf("load %s: %w", logical, err)
			}

			logger.Debug("table loaded", "table", logical, "rows", len(t.Rows), "columns", len(t.Columns))

			mu.Lock()
			raw[logical] = t
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return raw, nil
}
