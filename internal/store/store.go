// Package store persists analysis runs to Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"ecommerce-analytics/internal/models"
)

const connectTimeout = 12 * time.Second

var validSchema = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Run is one pipeline execution as persisted.
type Run struct {
	Source        string
	Tag           string
	Binning       string
	GeneratedAt   time.Time
	ReferenceDate time.Time
	Orders        int
	TotalRevenue  float64
	Monthly       []models.MonthlyKPI
	Yearly        []models.YearlyKPI
	RFM           []models.RFMRecord
	Segments      []models.SegmentSummary
}

type Store struct {
	db     *sql.DB
	schema string
}

// Open connects to Postgres and creates the schema and tables if needed.
func Open(ctx context.Context, dsn, schema string) (*Store, error) {
	schema, err := SanitizeSchema(schema)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{db: db, schema: schema}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func SanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	if !validSchema.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func schemaStatements(schema string) []string {
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.analysis_runs (
			id uuid PRIMARY KEY,
			source text NOT NULL,
			run_tag text,
			binning text NOT NULL,
			generated_at timestamptz NOT NULL,
			reference_date timestamp,
			orders integer NOT NULL,
			total_revenue double precision NOT NULL
		)`, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.monthly_kpi (
			run_id uuid NOT NULL REFERENCES %s.analysis_runs(id) ON DELETE CASCADE,
			month date NOT NULL,
			revenue double precision NOT NULL,
			mom_pct double precision,
			yoy_rolling_pct double precision,
			rolling_3m double precision,
			revenue_last_year double precision,
			yoy_same_month_pct double precision,
			month_num smallint NOT NULL,
			PRIMARY KEY (run_id, month)
		)`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.yearly_kpi (
			run_id uuid NOT NULL REFERENCES %s.analysis_runs(id) ON DELETE CASCADE,
			year integer NOT NULL,
			revenue double precision NOT NULL,
			yoy_pct double precision,
			PRIMARY KEY (run_id, year)
		)`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.customer_rfm (
			run_id uuid NOT NULL REFERENCES %s.analysis_runs(id) ON DELETE CASCADE,
			customer_id text NOT NULL,
			last_purchase timestamp NOT NULL,
			recency_days integer NOT NULL,
			frequency integer NOT NULL,
			monetary double precision NOT NULL,
			r_score smallint NOT NULL,
			f_score smallint NOT NULL,
			m_score smallint NOT NULL,
			rfm_score char(3) NOT NULL,
			segment text NOT NULL,
			PRIMARY KEY (run_id, customer_id)
		)`, schema, schema),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.segment_summary (
			run_id uuid NOT NULL REFERENCES %s.analysis_runs(id) ON DELETE CASCADE,
			segment text NOT NULL,
			customers integer NOT NULL,
			monetary double precision NOT NULL,
			avg_frequency double precision NOT NULL,
			avg_recency_days double precision NOT NULL,
			PRIMARY KEY (run_id, segment)
		)`, schema, schema),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_customer_rfm_segment_idx ON %s.customer_rfm (run_id, segment)`, schema, schema),
	}
}

// SaveRun writes run and all its rows in one transaction and returns the run
// id.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	runID := uuid.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.analysis_runs (
			id, source, run_tag, binning, generated_at, reference_date, orders, total_revenue
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, s.schema),
		runID,
		run.Source,
		nullString(run.Tag),
		run.Binning,
		run.GeneratedAt,
		nullTime(run.ReferenceDate),
		run.Orders,
		run.TotalRevenue,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	insertMonthly := fmt.Sprintf(`
		INSERT INTO %s.monthly_kpi (
			run_id, month, revenue, mom_pct, yoy_rolling_pct, rolling_3m,
			revenue_last_year, yoy_same_month_pct, month_num
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, s.schema)
	for _, m := range run.Monthly {
		_, err = tx.ExecContext(ctx, insertMonthly,
			runID,
			m.Month.Start(),
			m.Revenue,
			nullFloat(m.MoMPct),
			nullFloat(m.YoYRollingPct),
			nullFloat(m.Rolling3M),
			nullFloat(m.RevenueLastYear),
			nullFloat(m.YoYSameMonthPct),
			m.MonthNum,
		)
		if err != nil {
			return "", fmt.Errorf("insert monthly kpi %s: %w", m.Month, err)
		}
	}

	insertYearly := fmt.Sprintf(`
		INSERT INTO %s.yearly_kpi (run_id, year, revenue, yoy_pct) VALUES ($1,$2,$3,$4)`, s.schema)
	for _, y := range run.Yearly {
		_, err = tx.ExecContext(ctx, insertYearly, runID, y.Year, y.Revenue, nullFloat(y.YoYPct))
		if err != nil {
			return "", fmt.Errorf("insert yearly kpi %d: %w", y.Year, err)
		}
	}

	insertRFM := fmt.Sprintf(`
		INSERT INTO %s.customer_rfm (
			run_id, customer_id, last_purchase, recency_days, frequency, monetary,
			r_score, f_score, m_score, rfm_score, segment
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, s.schema)
	for _, r := range run.RFM {
		_, err = tx.ExecContext(ctx, insertRFM,
			runID,
			r.CustomerID,
			r.LastPurchase,
			r.RecencyDays,
			r.Frequency,
			r.Monetary,
			r.RScore,
			r.FScore,
			r.MScore,
			r.RFMScore,
			string(r.Segment),
		)
		if err != nil {
			return "", fmt.Errorf("insert rfm %s: %w", r.CustomerID, err)
		}
	}

	insertSegment := fmt.Sprintf(`
		INSERT INTO %s.segment_summary (
			run_id, segment, customers, monetary, avg_frequency, avg_recency_days
		) VALUES ($1,$2,$3,$4,$5,$6)`, s.schema)
	for _, seg := range run.Segments {
		_, err = tx.ExecContext(ctx, insertSegment,
			runID,
			string(seg.Segment),
			seg.Customers,
			seg.Monetary,
			seg.AvgFrequency,
			seg.AvgRecencyDays,
		)
		if err != nil {
			return "", fmt.Errorf("insert segment %s: %w", seg.Segment, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

// RunSummary is a stored run as listed by Runs.
type RunSummary struct {
	ID           string
	Source       string
	Tag          string
	GeneratedAt  time.Time
	Orders       int
	TotalRevenue float64
}

// Runs lists the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, source, COALESCE(run_tag, ''), generated_at, orders, total_revenue
		FROM %s.analysis_runs
		ORDER BY generated_at DESC
		LIMIT $1`, s.schema), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Source, &r.Tag, &r.GeneratedAt, &r.Orders, &r.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
