package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"ecommerce-analytics/internal/config"
	"ecommerce-analytics/internal/facts"
	"ecommerce-analytics/internal/kpi"
	"ecommerce-analytics/internal/loader"
	"ecommerce-analytics/internal/metrics"
	"ecommerce-analytics/internal/models"
	"ecommerce-analytics/internal/observability"
	"ecommerce-analytics/internal/rfm"
)

// Settings are the analysis parameters a report was computed with. A cached
// report is reused only when its settings match.
type Settings struct {
	Binning       rfm.Binning `json:"binning"`
	TopN          int         `json:"top_n"`
	ReferenceDate time.Time   `json:"reference_date,omitempty"`
}

// SettingsFromConfig converts validated analysis configuration into pipeline
// settings.
func SettingsFromConfig(cfg config.AnalysisConfig) (Settings, error) {
	binning, err := rfm.ParseBinning(cfg.Binning)
	if err != nil {
		return Settings{}, err
	}
	s := Settings{Binning: binning, TopN: cfg.TopN}
	if cfg.ReferenceDate != "" {
		ref, err := time.Parse(time.DateOnly, cfg.ReferenceDate)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid reference date: %w", err)
		}
		// end of the given day, so purchases on that day have recency 0
		s.ReferenceDate = ref.Add(24*time.Hour - time.Second)
	}
	return s, nil
}

// Report is everything derived from one load of the source tables.
type Report struct {
	Source        string    `json:"source"`
	SourceModTime time.Time `json:"source_mod_time"`
	GeneratedAt   time.Time `json:"generated_at"`
	Settings      Settings  `json:"settings"`

	Tables          []loader.Diagnostics `json:"tables"`
	Decode          loader.DecodeStats   `json:"decode"`
	FactDiagnostics facts.Diagnostics    `json:"fact_diagnostics"`
	Summary         facts.Summary        `json:"summary"`

	Facts       []models.OrderFact        `json:"-"`
	Monthly     []models.MonthlyKPI       `json:"monthly_kpi"`
	Yearly      []models.YearlyKPI        `json:"yearly_kpi"`
	Seasonality []models.SeasonalityPoint `json:"seasonality"`

	RFM              []models.RFMRecord      `json:"rfm"`
	Segments         []models.SegmentSummary `json:"segments"`
	ReferenceDate    time.Time               `json:"rfm_reference_date"`
	UndatedCustomers int                     `json:"undated_customers"`

	DeliveryTimes []int `json:"-"`
}

// PipelineOptions configure Run.
type PipelineOptions struct {
	// Tables maps logical table names to the source's physical names. Nil
	// means loader.DefaultTables().
	Tables   map[string]string
	Settings Settings
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Run executes load → decode → facts → KPI → RFM against src. Each stage is
// traced and timed.
func Run(ctx context.Context, src loader.Source, opts PipelineOptions) (*Report, error) {
	if opts.Tables == nil {
		opts.Tables = loader.DefaultTables()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Settings.Binning == "" {
		opts.Settings.Binning = rfm.BinRankFirst
	}
	logger := opts.Logger

	ctx, span := observability.StartSpan(ctx, "pipeline")
	defer span.Finish()
	span.SetTag("source", src.Describe())

	report := &Report{
		Source:   src.Describe(),
		Settings: opts.Settings,
	}
	if mod, ok := src.ModTime(); ok {
		report.SourceModTime = mod
	}

	var raw loader.Raw
	err := observability.Stage(ctx, logger, "load", func(ctx context.Context) error {
		var err error
		raw, err = loader.LoadAll(ctx, src, opts.Tables, logger)
		if err != nil {
			return err
		}
		report.Tables = raw.Diagnostics()
		for _, d := range report.Tables {
			metrics.RowsLoaded.WithLabelValues(d.Table).Set(float64(d.Rows))
			metrics.NullCells.WithLabelValues(d.Table).Set(float64(d.TotalNulls()))
			logger.Info("table diagnostics",
				"table", d.Table,
				"rows", d.Rows,
				"columns", d.Columns,
				"nulls", d.TotalNulls(),
				"duplicates", d.Duplicates)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("load tables: %w", err)
	}

	var ds models.Dataset
	err = observability.Stage(ctx, logger, "decode", func(ctx context.Context) error {
		var err error
		ds, report.Decode, err = loader.Decode(raw)
		if err != nil {
			return err
		}
		for column, n := range report.Decode.InvalidDates {
			metrics.InvalidValues.WithLabelValues(column, "date").Set(float64(n))
		}
		for column, n := range report.Decode.InvalidNumbers {
			metrics.InvalidValues.WithLabelValues(column, "number").Set(float64(n))
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("decode tables: %w", err)
	}

	_ = observability.Stage(ctx, logger, "facts", func(ctx context.Context) error {
		res := facts.Build(ds)
		report.Facts = res.Facts
		report.FactDiagnostics = res.Diagnostics
		report.Summary = facts.Summarize(res.Facts, opts.Settings.TopN)
		report.DeliveryTimes = facts.DeliveryTimes(res.Facts)

		metrics.FactRows.Set(float64(len(res.Facts)))
		observability.GetSpan(ctx).SetTag("rows", strconv.Itoa(len(res.Facts)))
		d := res.Diagnostics
		logger.Info("fact table built",
			"orders", len(res.Facts),
			"negative_price", d.NegativePrice,
			"negative_freight", d.NegativeFreight,
			"duplicate_orders", d.DuplicateOrders,
			"orders_without_items", d.OrdersWithoutItems,
			"orders_without_payments", d.OrdersWithoutPayments,
			"unmatched_customers", d.UnmatchedCustomers)
		return nil
	})

	_ = observability.Stage(ctx, logger, "kpi", func(ctx context.Context) error {
		report.Monthly = kpi.Monthly(report.Facts)
		report.Yearly = kpi.Yearly(report.Facts)
		report.Seasonality = kpi.Seasonality(report.Monthly)
		logger.Info("kpis computed",
			"months", len(report.Monthly),
			"years", len(report.Yearly),
			"revenue", kpi.Total(report.Monthly))
		return nil
	})

	err = observability.Stage(ctx, logger, "rfm", func(ctx context.Context) error {
		res, err := rfm.Compute(report.Facts, rfm.Options{
			ReferenceDate: opts.Settings.ReferenceDate,
			Binning:       opts.Settings.Binning,
		})
		if err != nil {
			return err
		}
		report.RFM = res.Records
		report.ReferenceDate = res.ReferenceDate
		report.UndatedCustomers = res.UndatedCustomers
		report.Segments = rfm.Summarize(res.Records)

		for _, seg := range models.Segments {
			metrics.CustomersPerSegment.WithLabelValues(string(seg)).Set(0)
		}
		for _, s := range report.Segments {
			metrics.CustomersPerSegment.WithLabelValues(string(s.Segment)).Set(float64(s.Customers))
		}
		if res.UndatedCustomers > 0 {
			logger.Warn("customers without a dated order skipped", "customers", res.UndatedCustomers)
		}
		logger.Info("rfm computed",
			"customers", len(res.Records),
			"reference_date", res.ReferenceDate.Format(time.DateOnly),
			"binning", string(opts.Settings.Binning))
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("rfm: %w", err)
	}

	report.GeneratedAt = opts.Clock.Now()
	return report, nil
}
