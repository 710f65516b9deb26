package loader

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".csv"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadCSV_NullsAndDiagnostics(t *testing.T) {
	content := "a,b,c\n1,,x\n1,,x\n2,3,\n"
	tbl, err := readCSV(context.Background(), "t", strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)

	d := tbl.Diagnostics()
	require.Equal(t, 3, d.Rows)
	require.Equal(t, 3, d.Columns)
	require.Equal(t, 2, d.Nulls["b"])
	require.Equal(t, 1, d.Nulls["c"])
	require.Equal(t, 0, d.Nulls["a"])
	require.Equal(t, 1, d.Duplicates)
	require.Equal(t, 3, d.TotalNulls())
}

func TestReadCSV_EmptyFile(t *testing.T) {
	_, err := readCSV(context.Background(), "t", strings.NewReader(""))
	require.Error(t, err)
}

func TestTable_ColumnIsCaseInsensitive(t *testing.T) {
	tbl := NewTable("orders", []string{"\ufeffOrder_ID", "customer_id"})
	idx, err := tbl.Column("order_id")
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	_, err = tbl.Column("missing")
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestTable_AppendPadsShortRows(t *testing.T) {
	tbl := NewTable("t", []string{"a", "b"})
	tbl.Append(row("1"))
	require.Len(t, tbl.Rows[0], 2)
	require.False(t, tbl.Rows[0][1].Valid)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want *time.Time
	}{
		{"2017-10-02 10:56:33", ptrTime(time.Date(2017, 10, 2, 10, 56, 33, 0, time.UTC))},
		{"2017-10-02", ptrTime(time.Date(2017, 10, 2, 0, 0, 0, 0, time.UTC))},
		{"2017-10-02T10:56:33Z", ptrTime(time.Date(2017, 10, 2, 10, 56, 33, 0, time.UTC))},
		{"", nil},
		{"not a date", nil},
		{"2017-13-45 99:00:00", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTime(tt.in)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.True(t, tt.want.Equal(*got), "got %v want %v", got, tt.want)
		})
	}
}

func TestParseFloat(t *testing.T) {
	v, ok := ParseFloat("12.5")
	require.True(t, ok)
	require.InDelta(t, 12.5, *v, 1e-9)

	v, ok = ParseFloat("")
	require.True(t, ok)
	require.Nil(t, v)

	v, ok = ParseFloat("abc")
	require.False(t, ok)
	require.Nil(t, v)

	for _, s := range []string{"NaN", "nan", "Inf", "+Inf", "-inf", "infinity", "1e400"} {
		v, ok = ParseFloat(s)
		require.False(t, ok, s)
		require.Nil(t, v, s)
	}
}

func TestDecode_NonFiniteNumbersAreNull(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	writeCSV(t, dir, "order_items", "order_id,order_item_id,product_id,seller_id,price,freight_value\no1,1,p1,s1,NaN,2\no1,2,p2,s1,10,-Inf\n")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	raw, err := LoadAll(context.Background(), NewCSVSource(dir, DefaultTables()), DefaultTables(), logger)
	require.NoError(t, err)
	ds, stats, err := Decode(raw)
	require.NoError(t, err)

	require.Len(t, ds.Items, 2)
	require.Nil(t, ds.Items[0].Price)
	require.Nil(t, ds.Items[1].FreightValue)
	require.Equal(t, 1, stats.InvalidNumbers["price"])
	require.Equal(t, 1, stats.InvalidNumbers["freight_value"])

	_, err = json.Marshal(ds.Items)
	require.NoError(t, err)
}

func ptrTime(t time.Time) *time.Time { return &t }

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	writeCSV(t, dir, "orders", "order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date\n"+
		"o1,c1,delivered,2017-01-05 10:00:00,,,2017-01-10 09:00:00,2017-01-20 00:00:00\n"+
		"o2,c2,shipped,garbage,,,,\n")
	writeCSV(t, dir, "customers", "customer_id,customer_unique_id,customer_zip_code_prefix,customer_city,customer_state\nc1,u1,01000,sao paulo,SP\n")
	writeCSV(t, dir, "order_items", "order_id,order_item_id,product_id,seller_id,price,freight_value\no1,1,p1,s1,10.5,2\no1,2,p2,s1,x,1\n")
	writeCSV(t, dir, "order_payments", "order_id,payment_sequential,payment_type,payment_installments,payment_value\no1,1,credit_card,1,13.5\n")
	writeCSV(t, dir, "products", "product_id,product_category_name\np1,beleza_saude\n")
	writeCSV(t, dir, "product_category_name_translation", "product_category_name,product_category_name_english\nbeleza_saude,health_beauty\n")
}

func TestLoadAll_CSVSource(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)

	src := NewCSVSource(dir, DefaultTables())
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	raw, err := LoadAll(context.Background(), src, DefaultTables(), logger)
	require.NoError(t, err)
	require.NotContains(t, raw, TableSellers)
	require.NotContains(t, raw, TableGeolocation)
	require.Len(t, raw, 6)

	modTime, ok := src.ModTime()
	require.True(t, ok)
	require.False(t, modTime.IsZero())

	ds, stats, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds.Orders, 2)
	require.NotNil(t, ds.Orders[0].PurchaseTimestamp)
	require.Nil(t, ds.Orders[0].ApprovedAt)
	require.Nil(t, ds.Orders[1].PurchaseTimestamp)
	require.Equal(t, 1, stats.InvalidDates["order_purchase_timestamp"])
	require.Equal(t, 1, stats.InvalidNumbers["price"])
	require.Nil(t, ds.Items[1].Price)
	require.Equal(t, "health_beauty", ds.Translations[0].CategoryNameEnglish)
}

func TestLoadAll_MissingRequiredTable(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "orders.csv")))

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	_, err := LoadAll(context.Background(), NewCSVSource(dir, DefaultTables()), DefaultTables(), logger)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingTable))
}

func TestDecode_MissingColumn(t *testing.T) {
	raw := Raw{
		TableOrders:     NewTable("orders", []string{"order_id", "customer_id"}),
		TableCustomers:  NewTable("customers", []string{"customer_id"}),
		TableItems:      NewTable("order_items", []string{"order_id", "product_id", "price", "freight_value"}),
		TablePayments:   NewTable("order_payments", []string{"order_id", "payment_value"}),
		TableProducts:   NewTable("products", []string{"product_id", "product_category_name"}),
		TableCategories: NewTable("categories", []string{"product_category_name", "product_category_name_english"}),
	}
	_, _, err := Decode(raw)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestToNullString(t *testing.T) {
	require.False(t, toNullString(nil).Valid)
	require.Equal(t, "abc", toNullString([]byte("abc")).String)
	require.Equal(t, "12.5", toNullString(12.5).String)
	require.Equal(t, "7", toNullString(int64(7)).String)
	require.Equal(t, "2017-01-02 03:04:05", toNullString(time.Date(2017, 1, 2, 3, 4, 5, 0, time.UTC)).String)
}

func TestQuoteIdent(t *testing.T) {
	require.Equal(t, `"public"."orders"`, quoteIdent("public.orders"))
	require.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}

func TestRedactDSN(t *testing.T) {
	require.Equal(t, "postgres://***@localhost:5432/db", redactDSN("postgres://user:pw@localhost:5432/db"))
	require.Equal(t, "host=localhost", redactDSN("host=localhost"))
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(context.Background(), "sqlite", "", "", DefaultTables())
	require.Error(t, err)

	src, err := Open(context.Background(), KindCSV, "data", "", DefaultTables())
	require.NoError(t, err)
	require.Equal(t, "csv:data", src.Describe())
}

func TestDuckDBCSV_MatchesCSVSource(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	duck, err := OpenDuckDBCSV(ctx, dir)
	require.NoError(t, err)
	t.Cleanup(func() { duck.Close() })

	_, ok := duck.ModTime()
	require.False(t, ok, "a directory scan has no single modification time")

	fromDuck, err := LoadAll(ctx, duck, DefaultTables(), logger)
	require.NoError(t, err)
	fromCSV, err := LoadAll(ctx, NewCSVSource(dir, DefaultTables()), DefaultTables(), logger)
	require.NoError(t, err)

	require.Equal(t, len(fromCSV), len(fromDuck))
	for name, want := range fromCSV {
		got := fromDuck[name]
		require.NotNil(t, got, name)
		require.Equal(t, want.Columns, got.Columns, name)
		require.Equal(t, want.Rows, got.Rows, name)
	}
}

func TestSQLSource_DuckDBTable(t *testing.T) {
	ctx := context.Background()
	src, err := OpenSQLSource(ctx, "duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	_, err = src.db.ExecContext(ctx, `CREATE TABLE order_payments (order_id VARCHAR, payment_value DOUBLE, paid_at TIMESTAMP)`)
	require.NoError(t, err)
	_, err = src.db.ExecContext(ctx, `INSERT INTO order_payments VALUES ('o1', 12.5, TIMESTAMP '2017-01-02 03:04:05'), ('o2', NULL, NULL)`)
	require.NoError(t, err)

	table, err := src.Table(ctx, "order_payments")
	require.NoError(t, err)
	require.Equal(t, []string{"order_id", "payment_value", "paid_at"}, table.Columns)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "12.5", table.Rows[0][1].String)
	require.Equal(t, "2017-01-02 03:04:05", table.Rows[0][2].String)
	require.False(t, table.Rows[1][1].Valid)
	require.Equal(t, "duckdb:memory", src.Describe())
}
