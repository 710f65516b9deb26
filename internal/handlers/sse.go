package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"ecommerce-analytics/internal/charts"
	"ecommerce-analytics/internal/models"
	"ecommerce-analytics/internal/services"
)

const maxTableRows = 36

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct": func(v *float64) string {
		if v == nil {
			return "–"
		}
		return fmt.Sprintf("%.2f%%", *v)
	},
	"ptr": func(v *float64) string {
		if v == nil {
			return "–"
		}
		return fmt.Sprintf("%.2f", *v)
	},
}

var monthlyTableTemplate = template.Must(template.New("monthlyTable").Funcs(funcs).Parse(`
<div id="monthly-content">
<table class="modern-table">
<thead><tr><th>Month</th><th>Revenue</th><th>MoM</th><th>Rolling 3M</th><th>YoY</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.Month}}</td>
<td><strong>{{money .Revenue}}</strong></td>
<td>{{pct .MoMPct}}</td>
<td>{{ptr .Rolling3M}}</td>
<td>{{pct .YoYSameMonthPct}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var segmentTableTemplate = template.Must(template.New("segmentTable").Funcs(funcs).Parse(`
<div id="segments-content">
<table class="modern-table">
<thead><tr><th>Segment</th><th>Customers</th><th>Revenue</th><th>Avg frequency</th><th>Avg recency (days)</th></tr></thead>
<tbody>
{{range .}}<tr>
<td><span class="segment-badge segment-{{.Segment}}">{{.Segment}}</span></td>
<td>{{.Customers}}</td>
<td><strong>{{money .Monetary}}</strong></td>
<td>{{printf "%.2f" .AvgFrequency}}</td>
<td>{{printf "%.1f" .AvgRecencyDays}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

const loadingFragment = `<div id="status" class="status-loading">Report is being computed…</div>`

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

// lastRows keeps the most recent months, which is what the table shows.
func lastRows(rows []models.MonthlyKPI) []models.MonthlyKPI {
	if len(rows) > maxTableRows {
		return rows[len(rows)-maxTableRows:]
	}
	return rows
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// notReady answers with a loading fragment while no report exists.
func (h *SSEHandlers) notReady(sse *datastar.ServerSentEventGenerator, w http.ResponseWriter) bool {
	if h.analytics.Ready() {
		return false
	}
	if err := sse.PatchElements(loadingFragment); err != nil {
		h.logger.Error("patch loading fragment", "error", err)
	}
	flush(w)
	return true
}

func (h *SSEHandlers) patchSignals(sse *datastar.ServerSentEventGenerator, signals map[string]any) error {
	data, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	return sse.PatchSignals(data)
}

func (h *SSEHandlers) HandleMonthlyKPI(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse, w) {
		return
	}

	data := h.analytics.MonthlyKPI()
	html, err := render(monthlyTableTemplate, lastRows(data))
	if err != nil {
		h.logger.Error("render monthly table", "error", err)
		return
	}
	if err := h.patchSignals(sse, map[string]any{"monthlyKPI": data}); err != nil {
		h.logger.Error("patch monthly signals", "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleSeasonality(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse, w) {
		return
	}

	if err := h.patchSignals(sse, map[string]any{"seasonality": h.analytics.Seasonality()}); err != nil {
		h.logger.Error("patch seasonality signals", "error", err)
		return
	}
	sse.PatchElements(`<div id="seasonality-content"><img src="/charts/seasonality.svg" alt="Seasonality"></div>`)
	flush(w)
}

func (h *SSEHandlers) HandleSegments(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse, w) {
		return
	}

	data := h.analytics.Segments()
	html, err := render(segmentTableTemplate, data)
	if err != nil {
		h.logger.Error("render segment table", "error", err)
		return
	}
	if err := h.patchSignals(sse, map[string]any{"segments": data}); err != nil {
		h.logger.Error("patch segment signals", "error", err)
		return
	}
	sse.PatchElements(html)
	flush(w)
}

func (h *SSEHandlers) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse, w) {
		return
	}

	bins := charts.Histogram(h.analytics.DeliveryTimes(), charts.HistogramBins)
	if err := h.patchSignals(sse, map[string]any{"deliveryHistogram": bins}); err != nil {
		h.logger.Error("patch delivery signals", "error", err)
		return
	}
	sse.PatchElements(`<div id="delivery-content"><img src="/charts/delivery_time.svg" alt="Delivery time distribution"></div>`)
	flush(w)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if h.notReady(sse, w) {
		return
	}

	monthly := h.analytics.MonthlyKPI()
	segments := h.analytics.Segments()

	monthlyHTML, err := render(monthlyTableTemplate, lastRows(monthly))
	if err != nil {
		h.logger.Error("render monthly table", "error", err)
		return
	}
	segmentHTML, err := render(segmentTableTemplate, segments)
	if err != nil {
		h.logger.Error("render segment table", "error", err)
		return
	}
	sse.PatchElements(monthlyHTML)
	sse.PatchElements(segmentHTML)

	// one signal patch for every chart dataset
	if err := h.patchSignals(sse, map[string]any{
		"monthlyKPI":        monthly,
		"yearlyKPI":         h.analytics.YearlyKPI(),
		"seasonality":       h.analytics.Seasonality(),
		"segments":          segments,
		"deliveryHistogram": charts.Histogram(h.analytics.DeliveryTimes(), charts.HistogramBins),
	}); err != nil {
		h.logger.Error("marshal all signals data", "error", err)
		return
	}
	flush(w)
}
