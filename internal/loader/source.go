package loader

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pingTimeout     = 3 * time.Second
	ctxCheckEvery   = 4096
	sqlTimestampFmt = "2006-01-02 15:04:05"
)

// Source provides tables by their physical name.
type Source interface {
	Table(ctx context.Context, name string) (*Table, error)
	Describe() string
	// ModTime reports when the underlying data last changed, if known.
	ModTime() (time.Time, bool)
	Close() error
}

// CSVSource reads <dir>/<name>.csv files.
type CSVSource struct {
	dir    string
	tables []string
}

func NewCSVSource(dir string, tables map[string]string) *CSVSource {
	names := make([]string, 0, len(tables))
	for _, physical := range tables {
		names = append(names, physical)
	}
	return &CSVSource{dir: dir, tables: names}
}

func (s *CSVSource) path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

func (s *CSVSource) Table(ctx context.Context, name string) (*Table, error) {
	file, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingTable, s.path(name))
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	return readCSV(ctx, name, file)
}

func readCSV(ctx context.Context, name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", name)
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	t := NewTable(name, header)
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read row %d: %w", name, n+1, err)
		}

		t.Append(row(record...))
	}
	return t, nil
}

func (s *CSVSource) Describe() string {
	return "csv:" + s.dir
}

func (s *CSVSource) ModTime() (time.Time, bool) {
	var latest time.Time
	found := false
	for _, name := range s.tables {
		info, err := os.Stat(s.path(name))
		if err != nil {
			continue
		}
		found = true
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, found
}

func (s *CSVSource) Close() error {
	return nil
}

// Source kinds accepted by Open.
const (
	KindCSV      = "csv"
	KindDuckDB   = "duckdb"
	KindPostgres = "postgres"
)

// Open returns the source of the given kind. For duckdb, a non-empty dsn is a
// database file and an empty one scans the CSV files of dir.
func Open(ctx context.Context, kind, dir, dsn string, tables map[string]string) (Source, error) {
	switch kind {
	case KindCSV:
		return NewCSVSource(dir, tables), nil
	case KindDuckDB:
		if dsn != "" {
			return OpenSQLSource(ctx, "duckdb", dsn)
		}
		return OpenDuckDBCSV(ctx, dir)
	case KindPostgres:
		return OpenSQLSource(ctx, "pgx", dsn)
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

// SQLSource reads whole tables through database/sql. Supported drivers are
// "duckdb" and "pgx".
type SQLSource struct {
	db       *sql.DB
	driver   string
	dsn      string
	queryFor func(name string) string
	// precheck, when set, runs before the query of a table.
	precheck func(name string) error
}

func OpenSQLSource(ctx context.Context, driver, dsn string) (*SQLSource, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s ping failed: %w", driver, err)
	}

	return &SQLSource{
		db:     db,
		driver: driver,
		dsn:    dsn,
		queryFor: func(name string) string {
			return "SELECT * FROM " + quoteIdent(name)
		},
	}, nil
}

// OpenDuckDBCSV opens an in-memory DuckDB that scans <dir>/<name>.csv with
// read_csv_auto. Every column is read as text so decoding stays in one place.
func OpenDuckDBCSV(ctx context.Context, dir string) (*SQLSource, error) {
	src, err := OpenSQLSource(ctx, "duckdb", "")
	if err != nil {
		return nil, err
	}
	src.dsn = dir
	src.precheck = func(name string) error {
		path := filepath.Join(dir, name+".csv")
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingTable, path)
		}
		return nil
	}
	src.queryFor = func(name string) string {
		path := filepath.Join(dir, name+".csv")
		return fmt.Sprintf("SELECT * FROM read_csv_auto('%s', header=true, all_varchar=true)",
			strings.ReplaceAll(path, "'", "''"))
	}
	return src, nil
}

func (s *SQLSource) Table(ctx context.Context, name string) (*Table, error) {
	if s.precheck != nil {
		if err := s.precheck(name); err != nil {
			return nil, err
		}
	}
	rows, err := s.db.QueryContext(ctx, s.queryFor(name))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", name, err)
	}

	t := NewTable(name, cols)
	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		cells := make([]sql.NullString, len(cols))
		for i, v := range values {
			cells[i] = toNullString(v)
		}
		t.Append(cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return t, nil
}

func toNullString(v any) sql.NullString {
	switch val := v.(type) {
	case nil:
		return sql.NullString{}
	case string:
		return sql.NullString{String: val, Valid: true}
	case []byte:
		return sql.NullString{String: string(val), Valid: true}
	case time.Time:
		return sql.NullString{String: val.Format(sqlTimestampFmt), Valid: true}
	case float64:
		return sql.NullString{String: strconv.FormatFloat(val, 'f', -1, 64), Valid: true}
	case float32:
		return sql.NullString{String: strconv.FormatFloat(float64(val), 'f', -1, 32), Valid: true}
	case int64:
		return sql.NullString{String: strconv.FormatInt(val, 10), Valid: true}
	case int32:
		return sql.NullString{String: strconv.FormatInt(int64(val), 10), Valid: true}
	case bool:
		return sql.NullString{String: strconv.FormatBool(val), Valid: true}
	default:
		return sql.NullString{String: fmt.Sprint(val), Valid: true}
	}
}

func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func (s *SQLSource) Describe() string {
	if s.dsn == "" {
		return s.driver + ":memory"
	}
	if s.driver == "pgx" {
		return s.driver + ":" + redactDSN(s.dsn)
	}
	return s.driver + ":" + s.dsn
}

func (s *SQLSource) ModTime() (time.Time, bool) {
	if s.driver != "duckdb" || s.dsn == "" {
		return time.Time{}, false
	}
	info, err := os.Stat(s.dsn)
	if err != nil || info.IsDir() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
