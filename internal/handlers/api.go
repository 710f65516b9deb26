package handlers

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ecommerce-analytics/internal/charts"
	"ecommerce-analytics/internal/errors"
	"ecommerce-analytics/internal/loader"
	"ecommerce-analytics/internal/models"
	"ecommerce-analytics/internal/observability"
	"ecommerce-analytics/internal/rfm"
	"ecommerce-analytics/internal/services"
)

const (
	cacheControl    = "public, max-age=300"
	defaultTopN     = 10
	maxLimit        = 10000
	defaultRFMLimit = 100
)

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// ready writes an error and reports false while no report is loaded.
func (h *APIHandlers) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.analytics.Ready() {
		return true
	}
	errors.WriteError(w, h.logger, notReadyError(h.analytics.LoadErr()), observability.GetRequestID(r.Context()))
	return false
}

// notReadyError maps the last load failure to an API error. Without one the
// report is still being computed.
func notReadyError(loadErr error) *errors.AppError {
	switch {
	case loadErr == nil:
		return errors.NotReady("analytics report is still being computed")
	case stderrors.Is(loadErr, context.DeadlineExceeded), stderrors.Is(loadErr, context.Canceled):
		return errors.ServiceUnavailableWrap(loadErr, "report load was interrupted")
	case stderrors.Is(loadErr, loader.ErrMissingTable), stderrors.Is(loadErr, loader.ErrMissingColumn):
		return errors.DataSourceWrap(loadErr, "source data is incomplete")
	case stderrors.Is(loadErr, rfm.ErrDegenerateBins):
		return errors.AnalysisWrap(loadErr, "customer scores could not be binned")
	default:
		return errors.AnalysisWrap(loadErr, "report computation failed")
	}
}

func (h *APIHandlers) writeCached(w http.ResponseWriter, data any) {
	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": cacheControl,
	})
}

// parseLimit reads ?limit=, falling back to def when absent.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return 0, errors.BadRequest("limit must be an integer between 1 and " + strconv.Itoa(maxLimit))
	}
	return n, nil
}

func parseSegment(r *http.Request) (models.Segment, error) {
	raw := r.URL.Query().Get("segment")
	if raw == "" {
		return "", nil
	}
	for _, s := range models.Segments {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", errors.Validation("unknown segment " + strconv.Quote(raw))
}

func (h *APIHandlers) HandleMonthlyKPI(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	h.writeCached(w, h.analytics.MonthlyKPI())
}

func (h *APIHandlers) HandleYearlyKPI(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	h.writeCached(w, h.analytics.YearlyKPI())
}

func (h *APIHandlers) HandleSeasonality(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	h.writeCached(w, h.analytics.Seasonality())
}

func (h *APIHandlers) HandleRFM(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	requestID := observability.GetRequestID(r.Context())

	segment, err := parseSegment(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}
	limit, err := parseLimit(r, defaultRFMLimit)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	h.writeCached(w, h.analytics.RFM(segment, limit))
}

func (h *APIHandlers) HandleSegments(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	h.writeCached(w, h.analytics.Segments())
}

func (h *APIHandlers) HandleTopCategories(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	limit, err := parseLimit(r, defaultTopN)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}
	h.writeCached(w, h.analytics.TopCategories(limit))
}

func (h *APIHandlers) HandleTopStates(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	limit, err := parseLimit(r, defaultTopN)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}
	h.writeCached(w, h.analytics.TopStates(limit))
}

// HandleChart serves /charts/{name}.svg.
func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	requestID := observability.GetRequestID(r.Context())

	file := r.PathValue("file")
	name, ok := strings.CutSuffix(file, ".svg")
	if !ok || name == "" {
		errors.WriteError(w, h.logger, errors.NotFound("unknown chart "+strconv.Quote(file)), requestID)
		return
	}

	chart, err := charts.Build(name, h.analytics.MonthlyKPI(), h.analytics.Seasonality(), h.analytics.Segments(), h.analytics.DeliveryTimes())
	if err != nil {
		errors.WriteError(w, h.logger, errors.NotFound(err.Error()), requestID)
		return
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "failed to render chart"), requestID)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !h.analytics.Ready() {
		status = "loading"
	}

	healthData := map[string]string{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}
