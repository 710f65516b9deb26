// Package charts renders the report charts as standalone SVG documents.
package charts

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"
)

const (
	width   = 800.0
	height  = 360.0
	padTop  = 40.0
	padLeft = 70.0
	padSide = 20.0
	padBot  = 60.0

	barColor  = "#4c78a8"
	axisColor = "#9aa4b2"
	textColor = "#1f2933"
)

// Bar is one labelled value of a bar chart.
type Bar struct {
	Label string
	Value float64
}

// Chart is a titled bar chart. Negative values are drawn below the zero line.
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Bars   []Bar
	// LabelEvery thins the x labels; 0 or 1 labels every bar.
	LabelEvery int
}

// Render writes c as an SVG document.
func (c Chart) Render(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.0f %.0f" font-family="sans-serif" font-size="11">`, width, height)
	b.WriteString("\n")
	fmt.Fprintf(&b, `<text x="%.0f" y="22" text-anchor="middle" font-size="15" fill="%s">%s</text>`, width/2, textColor, html.EscapeString(c.Title))
	b.WriteString("\n")

	if len(c.Bars) == 0 {
		fmt.Fprintf(&b, `<text x="%.0f" y="%.0f" text-anchor="middle" fill="%s">No data.</text>`, width/2, height/2, axisColor)
		b.WriteString("\n</svg>\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	lo, hi := 0.0, 0.0
	for _, bar := range c.Bars {
		lo = math.Min(lo, bar.Value)
		hi = math.Max(hi, bar.Value)
	}
	if lo == hi {
		hi = lo + 1
	}

	plotW := width - padLeft - padSide
	plotH := height - padTop - padBot
	y := func(v float64) float64 {
		return padTop + plotH - (v-lo)/(hi-lo)*plotH
	}
	zero := y(0)

	// y axis with five ticks
	fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"/>`, padLeft, padTop, padLeft, padTop+plotH, axisColor)
	b.WriteString("\n")
	for i := 0; i <= 4; i++ {
		v := lo + (hi-lo)*float64(i)/4
		ty := y(v)
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-dasharray="2,3"/>`, padLeft, ty, width-padSide, ty, axisColor)
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="end" fill="%s">%s</text>`, padLeft-6, ty+4, textColor, formatValue(v))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"/>`, padLeft, zero, width-padSide, zero, textColor)
	b.WriteString("\n")

	every := c.LabelEvery
	if every < 1 {
		every = 1
	}
	slot := plotW / float64(len(c.Bars))
	barW := math.Max(slot*0.8, 1)
	for i, bar := range c.Bars {
		x := padLeft + float64(i)*slot + (slot-barW)/2
		top, bottom := y(bar.Value), zero
		if bar.Value < 0 {
			top, bottom = zero, y(bar.Value)
		}
		fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%s: %s</title></rect>`,
			x, top, barW, bottom-top, barColor, html.EscapeString(bar.Label), formatValue(bar.Value))
		b.WriteString("\n")
		if i%every == 0 {
			lx, ly := x+barW/2, padTop+plotH+14
			fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="end" transform="rotate(-45 %.1f %.1f)" fill="%s">%s</text>`,
				lx, ly, lx, ly, textColor, html.EscapeString(bar.Label))
			b.WriteString("\n")
		}
	}

	if c.XLabel != "" {
		fmt.Fprintf(&b, `<text x="%.0f" y="%.0f" text-anchor="middle" fill="%s">%s</text>`, padLeft+plotW/2, height-6, textColor, html.EscapeString(c.XLabel))
		b.WriteString("\n")
	}
	if c.YLabel != "" {
		fmt.Fprintf(&b, `<text x="14" y="%.0f" text-anchor="middle" transform="rotate(-90 14 %.0f)" fill="%s">%s</text>`, padTop+plotH/2, padTop+plotH/2, textColor, html.EscapeString(c.YLabel))
		b.WriteString("\n")
	}

	b.WriteString("</svg>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func formatValue(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	case abs == math.Trunc(abs):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
