// Package templates renders the dashboard page. Panels start empty and are
// filled by the Datastar SSE endpoints on load.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

type panel struct {
	ID    string
	Title string
	SSE   string
	Chart string
}

var panels = []panel{
	{ID: "monthly-content", Title: "Monthly revenue", SSE: "/sse/monthly-kpi", Chart: "/charts/monthly_revenue.svg"},
	{ID: "seasonality-content", Title: "Seasonality", SSE: "/sse/seasonality", Chart: "/charts/seasonality.svg"},
	{ID: "segments-content", Title: "Customer segments", SSE: "/sse/segments", Chart: "/charts/segment_revenue.svg"},
	{ID: "delivery-content", Title: "Delivery time", SSE: "/sse/delivery", Chart: "/charts/delivery_time.svg"},
}

const head = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Order Analytics</title>
<script type="module" src="` + datastarScript + `"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#222}
header{background:#1f3a5f;color:#fff;padding:1rem 2rem}
main{display:grid;grid-template-columns:repeat(auto-fit,minmax(520px,1fr));gap:1rem;padding:1rem 2rem}
section{background:#fff;border-radius:8px;padding:1rem;box-shadow:0 1px 3px rgba(0,0,0,.1)}
img{max-width:100%}
.modern-table{width:100%;border-collapse:collapse;font-size:.9rem}
.modern-table th,.modern-table td{padding:.35rem .5rem;border-bottom:1px solid #eee;text-align:right}
.modern-table th:first-child,.modern-table td:first-child{text-align:left}
.segment-badge{padding:.1rem .5rem;border-radius:4px;background:#e8eef7}
.status-loading{color:#a66}
</style>
</head>
`

// Dashboard renders the full page.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<body data-signals="{monthlyKPI: [], yearlyKPI: [], seasonality: [], segments: [], deliveryHistogram: []}">
<header><h1>Order Analytics</h1><div id="status"></div></header>
<main>
`); err != nil {
			return err
		}
		for _, p := range panels {
			if err := renderPanel(w, p); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main>
</body>
</html>
`)
		return err
	})
}

func renderPanel(w io.Writer, p panel) error {
	_, err := io.WriteString(w, `<section>
<h2>`+templ.EscapeString(p.Title)+`</h2>
<img src="`+templ.EscapeString(p.Chart)+`" alt="`+templ.EscapeString(p.Title)+`">
<div id="`+templ.EscapeString(p.ID)+`" data-on-load="@get('`+templ.EscapeString(p.SSE)+`')"></div>
</section>
`)
	return err
}
