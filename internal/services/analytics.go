package services

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"ecommerce-analytics/internal/facts"
	"ecommerce-analytics/internal/loader"
	"ecommerce-analytics/internal/metrics"
	"ecommerce-analytics/internal/models"
)

const cacheVersion = "v2"

var ErrNotReady = errors.New("report not loaded")

// Analytics holds the latest report and serves read-only views of it.
type Analytics struct {
	mu       sync.RWMutex
	report   *Report
	loadErr  error
	settings Settings
	tables   map[string]string
	cacheDir string
	clock    clockwork.Clock
	logger   *slog.Logger
}

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) { a.logger = logger }
}

func WithClock(clock clockwork.Clock) Option {
	return func(a *Analytics) { a.clock = clock }
}

// WithCacheDir enables the on-disk report snapshot.
func WithCacheDir(dir string) Option {
	return func(a *Analytics) { a.cacheDir = dir }
}

func WithTables(tables map[string]string) Option {
	return func(a *Analytics) { a.tables = tables }
}

func NewAnalytics(settings Settings, opts ...Option) *Analytics {
	a := &Analytics{
		settings: settings,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetReport replaces the current report.
func (a *Analytics) SetReport(r *Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report = r
	a.loadErr = nil
}

func (a *Analytics) setLoadErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadErr = err
}

// LoadErr returns the error of the last failed Load, if no report has been
// loaded since.
func (a *Analytics) LoadErr() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadErr
}

// Load computes a report from src, or restores it from the snapshot cache
// when the source has not changed since the snapshot was written.
func (a *Analytics) Load(ctx context.Context, src loader.Source) error {
	if cached, err := a.loadFromCache(src); err == nil {
		a.SetReport(cached)
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		a.logger.Info("loaded from cache", "source", src.Describe(), "orders", len(cached.Facts))
		return nil
	} else if a.cacheDir != "" {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		a.logger.Debug("cache miss", "reason", err)
	}

	start := a.clock.Now()
	a.logger.Info("computing report", "source", src.Describe())

	report, err := Run(ctx, src, PipelineOptions{
		Tables:   a.tables,
		Settings: a.settings,
		Clock:    a.clock,
		Logger:   a.logger,
	})
	if err != nil {
		a.setLoadErr(err)
		return err
	}
	a.SetReport(report)

	if err := a.saveToCache(src, report); err != nil {
		a.logger.Warn("failed to save cache", "error", err)
	}

	a.logger.Info("report ready",
		"orders", len(report.Facts),
		"customers", len(report.RFM),
		"duration", a.clock.Since(start))
	return nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (a *Analytics) cacheFilename(src loader.Source) string {
	return filepath.Join(a.cacheDir, fmt.Sprintf("%s_%s.gob", unsafeChars.ReplaceAllString(src.Describe(), "_"), cacheVersion))
}

// cacheEntry is the gob envelope of a snapshot. Report and facts travel as
// JSON because gob cannot tell a pointer to zero from a nil pointer.
type cacheEntry struct {
	Version       string
	SourceModTime time.Time
	Settings      Settings
	Report        []byte
	Facts         []byte
}

func (a *Analytics) saveToCache(src loader.Source, r *Report) error {
	if a.cacheDir == "" {
		return nil
	}
	if _, ok := src.ModTime(); !ok {
		return nil
	}
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return err
	}

	entry := cacheEntry{Version: cacheVersion, SourceModTime: r.SourceModTime, Settings: r.Settings}
	var err error
	if entry.Report, err = json.Marshal(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if entry.Facts, err = json.Marshal(r.Facts); err != nil {
		return fmt.Errorf("encode facts: %w", err)
	}

	tmp, err := os.CreateTemp(a.cacheDir, "report-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(entry); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), a.cacheFilename(src))
}

func (a *Analytics) loadFromCache(src loader.Source) (*Report, error) {
	if a.cacheDir == "" {
		return nil, errors.New("cache disabled")
	}
	mod, ok := src.ModTime()
	if !ok {
		return nil, errors.New("source has no modification time")
	}

	file, err := os.Open(a.cacheFilename(src))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entry cacheEntry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		return nil, err
	}
	switch {
	case entry.Version != cacheVersion:
		return nil, fmt.Errorf("snapshot version %q, want %q", entry.Version, cacheVersion)
	case !entry.SourceModTime.Equal(mod):
		return nil, errors.New("source changed since snapshot")
	case !entry.Settings.equal(a.settings):
		return nil, errors.New("settings changed since snapshot")
	}

	var r Report
	if err := json.Unmarshal(entry.Report, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if err := json.Unmarshal(entry.Facts, &r.Facts); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	r.DeliveryTimes = facts.DeliveryTimes(r.Facts)
	return &r, nil
}

func (s Settings) equal(o Settings) bool {
	return s.Binning == o.Binning && s.TopN == o.TopN && s.ReferenceDate.Equal(o.ReferenceDate)
}

// Report returns the current report or ErrNotReady.
func (a *Analytics) Report() (*Report, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil, ErrNotReady
	}
	return a.report, nil
}

func (a *Analytics) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.report != nil
}

func (a *Analytics) MonthlyKPI() []models.MonthlyKPI {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil
	}
	return a.report.Monthly
}

func (a *Analytics) YearlyKPI() []models.YearlyKPI {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil
	}
	return a.report.Yearly
}

func (a *Analytics) Seasonality() []models.SeasonalityPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil
	}
	return a.report.Seasonality
}

// RFM returns customer records, optionally restricted to one segment. A
// limit <= 0 returns every match.
func (a *Analytics) RFM(segment models.Segment, limit int) []models.RFMRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil
	}

	out := make([]models.RFMRecord, 0)
	for _, r := range a.report.RFM {
		if segment != "" && r.Segment != segment {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (a *Analytics) Segments() []models.SegmentSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil
	}
	return a.report.Segments
}

func (a *Analytics) TopCategories(limit int) []models.RevenueByKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil
	}
	return head(a.report.Summary.TopCategories, limit)
}

func (a *Analytics) TopStates(limit int) []models.RevenueByKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil
	}
	return head(a.report.Summary.TopStates, limit)
}

func (a *Analytics) DeliveryTimes() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.report == nil {
		return nil
	}
	return a.report.DeliveryTimes
}

func head[T any](s []T, limit int) []T {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}

// Utility method for monitoring
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.report == nil {
		return map[string]any{"ready": false}
	}
	r := a.report
	return map[string]any{
		"ready":             true,
		"source":            r.Source,
		"generated_at":      r.GeneratedAt,
		"age":               a.clock.Since(r.GeneratedAt).Round(time.Second).String(),
		"orders":            len(r.Facts),
		"customers":         len(r.RFM),
		"undated_customers": r.UndatedCustomers,
		"months":            len(r.Monthly),
		"years":             len(r.Yearly),
		"segments":          len(r.Segments),
		"binning":           string(r.Settings.Binning),
		"reference_date":    r.ReferenceDate,
	}
}
