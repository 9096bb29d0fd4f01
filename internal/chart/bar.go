// Package chart renders the "Cost by Category" bar chart.
package chart

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/singleflight"

	"subtrack/internal/cache"
	"subtrack/internal/core"
)

// DatasetLabel is the label of the single dataset in the chart.
const DatasetLabel = "Yearly Cost by Category"

const (
	defaultWidth    = 800
	defaultHeight   = 300
	defaultBarWidth = 64
)

// Options controls the rendered image.
type Options struct {
	Width    int
	Height   int
	BarWidth int
	Dark     bool
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Height <= 0 {
		o.Height = defaultHeight
	}
	if o.BarWidth <= 0 {
		o.BarWidth = defaultBarWidth
	}
	return o
}

// RenderSVG writes the bar chart for rows as SVG. Empty aggregations produce a
// placeholder image instead of an error.
func RenderSVG(w io.Writer, rows []core.CategoryAmount, opts Options) error {
	opts = opts.withDefaults()
	palette := core.PaletteFor(opts.Dark)
	if len(rows) == 0 {
		return renderEmpty(w, opts, palette)
	}

	textColor := hexColor(palette.Text)
	bars := make([]chart.Value, 0, len(rows))
	var maxY float64
	for _, r := range rows {
		v := r.Amount.Float()
		if v > maxY {
			maxY = v
		}
		col := hexColor(r.Color)
		bars = append(bars, chart.Value{
			Label: r.Name,
			Value: v,
			Style: chart.Style{FillColor: col, StrokeColor: col, StrokeWidth: 0},
		})
	}

	bc := chart.BarChart{
		Width:    opts.Width,
		Height:   opts.Height,
		BarWidth: opts.BarWidth,
		Background: chart.Style{
			FillColor: drawing.ColorTransparent,
			Padding:   chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
		},
		Canvas: chart.Style{FillColor: drawing.ColorTransparent},
		XAxis:  chart.Style{FontColor: textColor, StrokeColor: textColor},
		YAxis: chart.YAxis{
			Style:          chart.Style{FontColor: textColor, StrokeColor: gridColor(opts.Dark)},
			Range:          &chart.ContinuousRange{Min: 0, Max: niceMax(maxY)},
			ValueFormatter: func(v interface{}) string { return formatTick(v) },
			GridMajorStyle: chart.Style{StrokeColor: gridColor(opts.Dark), StrokeWidth: 1},
		},
		Bars: bars,
	}
	return bc.Render(chart.SVG, w)
}

// niceMax rounds the axis maximum up to 1, 2 or 5 times a power of ten so the
// tallest bar never touches the top edge.
func niceMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	v *= 1.1
	exp := math.Floor(math.Log10(v))
	base := math.Pow(10, exp)
	for _, m := range []float64{1, 2, 5, 10} {
		if v <= m*base {
			return m * base
		}
	}
	return 10 * base
}

func formatTick(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprint(v)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func hexColor(s string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}

func gridColor(dark bool) drawing.Color {
	if dark {
		return drawing.Color{R: 255, G: 255, B: 255, A: 26}
	}
	return drawing.Color{R: 0, G: 0, B: 0, A: 26}
}

func renderEmpty(w io.Writer, opts Options, palette core.Palette) error {
	_, err := fmt.Fprintf(w,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<text x="50%%" y="50%%" text-anchor="middle" fill="%s" font-family="Inter, sans-serif" font-size="14">%s</text></svg>`,
		opts.Width, opts.Height, opts.Width, opts.Height, palette.Text, html.EscapeString("No active subscriptions"))
	return err
}

// Key identifies a rendered chart by its inputs. Equal aggregations under the
// same theme share a key.
func Key(rows []core.CategoryAmount, dark bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "dark=%t;", dark)
	for _, r := range rows {
		fmt.Fprintf(h, "%s|%d|%s;", r.Name, r.Amount.Cents, r.Color)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Renderer caches rendered SVGs by Key and collapses concurrent renders of
// the same chart into one.
type Renderer struct {
	cache *cache.LRUCache[[]byte]
	group singleflight.Group
	opts  Options
}

// NewRenderer creates a renderer caching up to maxEntries charts for ttl.
func NewRenderer(maxEntries int, ttl time.Duration, opts Options) *Renderer {
	return &Renderer{
		cache: cache.NewLRUCache[[]byte](maxEntries, ttl),
		opts:  opts,
	}
}

// Render returns the SVG for rows and whether it came from the cache.
func (r *Renderer) Render(rows []core.CategoryAmount, dark bool) ([]byte, bool, error) {
	key := Key(rows, dark)
	if svg, ok := r.cache.Get(key); ok {
		return svg, true, nil
	}
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		opts := r.opts
		opts.Dark = dark
		var buf bytes.Buffer
		if err := RenderSVG(&buf, rows, opts); err != nil {
			return nil, fmt.Errorf("render bar chart: %w", err)
		}
		svg := buf.Bytes()
		r.cache.Set(key, svg)
		return svg, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// CleanExpired drops expired renders.
func (r *Renderer) CleanExpired() int {
	return r.cache.CleanExpired()
}

// Size returns the number of cached renders.
func (r *Renderer) Size() int {
	return r.cache.Size()
}
