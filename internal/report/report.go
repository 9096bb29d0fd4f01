// Package report renders a dashboard snapshot for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"subtrack/internal/core"
	"subtrack/internal/export"
)

const defaultBarWidth = 30

// Options controls terminal rendering.
type Options struct {
	BarWidth int
}

// theme holds the lipgloss styles for one palette.
type theme struct {
	title  lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	accent lipgloss.Style
	active lipgloss.Style
	bold   lipgloss.Style
}

func newTheme(r *lipgloss.Renderer, dark bool) theme {
	p := core.PaletteFor(dark)
	return theme{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Accent)),
		label:  r.NewStyle().Foreground(lipgloss.Color(p.Text)),
		muted:  r.NewStyle().Foreground(lipgloss.Color("240")),
		accent: r.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Accent)),
		active: r.NewStyle().Foreground(lipgloss.Color("#22C55E")),
		bold:   r.NewStyle().Bold(true),
	}
}

// WriteTable prints the subscription table, the summary cards and one bar per
// category. Every styled cell goes through a renderer bound to w, so colors
// are only emitted when w is a terminal.
func WriteTable(w io.Writer, snap export.Snapshot, opts Options) {
	if opts.BarWidth <= 0 {
		opts.BarWidth = defaultBarWidth
	}
	cur := snap.Currency
	if cur.Code == "" {
		cur = core.NewCurrency("USD")
	}
	th := newTheme(lipgloss.NewRenderer(w), snap.State.DarkTheme)

	mode := "off"
	if snap.State.GhostMode {
		mode = "on"
	}
	fmt.Fprintln(w, th.title.Render("Subscription Dashboard"))
	fmt.Fprintln(w, th.muted.Render("Ghost Mode: "+mode))
	fmt.Fprintln(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Name", "Category", "Next Payment", "Yearly", "Status"})
	for _, s := range snap.Subscriptions {
		status := th.active.Render("Active")
		if snap.State.Dimmed(s.ID) {
			status = th.muted.Render("Removed")
		}
		t.AppendRow(table.Row{s.ID, s.Name, s.Category, core.FormatDate(s.NextPayment), cur.Format(s.YearlyCost), status})
	}
	t.AppendSeparator()
	t.AppendFooter(table.Row{"", "", "", th.bold.Render("Total Annual Cost"), th.bold.Render(cur.Format(snap.Overview.Total)), ""})
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
	})
	t.Render()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s /year\n", th.label.Render("Total Annual Cost:"), th.accent.Render(cur.Format(snap.Overview.Total)))
	fmt.Fprintf(w, "%s %s services\n", th.label.Render("Active Subscriptions:"), th.accent.Render(fmt.Sprint(len(snap.Overview.Visible))))
	fmt.Fprintln(w)
	fmt.Fprintln(w, th.title.Render("Cost by Category"))
	writeBars(w, th, snap.Overview.ByCategory, cur, opts.BarWidth)
}

func writeBars(w io.Writer, th theme, cats []core.CategoryAmount, cur core.Currency, width int) {
	if len(cats) == 0 {
		fmt.Fprintln(w, th.muted.Render("No active subscriptions"))
		return
	}
	nameWidth := 0
	var max int64
	for _, c := range cats {
		nameWidth = maxInt(nameWidth, lipgloss.Width(c.Name))
		if c.Amount.Cents > max {
			max = c.Amount.Cents
		}
	}
	for _, c := range cats {
		n := barLength(c.Amount.Cents, max, width)
		bar := th.label.Foreground(lipgloss.Color(c.Color)).Render(strings.Repeat("█", n))
		fmt.Fprintf(w, "%s  %s %s\n",
			th.label.Render(c.Name+strings.Repeat(" ", nameWidth-lipgloss.Width(c.Name))),
			bar,
			cur.Format(c.Amount))
	}
}

// barLength scales amount to width against max. Non-zero amounts always get
// at least one cell.
func barLength(amount, max int64, width int) int {
	if amount <= 0 || max <= 0 {
		return 0
	}
	n := int(math.Round(float64(amount) / float64(max) * float64(width)))
	if n < 1 {
		n = 1
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// JSONOutput is the root JSON output object
type JSONOutput struct {
	DarkTheme     bool               `json:"dark_theme"`
	GhostMode     bool               `json:"ghost_mode"`
	Subscriptions []JSONSubscription `json:"subscriptions"`
	Categories    []JSONCategory     `json:"categories"`
	Summary       JSONSummary        `json:"summary"`
}

type JSONSubscription struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	YearlyCost  string `json:"yearly_cost"`
	NextPayment string `json:"next_payment"`
	Included    bool   `json:"included"`
}

type JSONCategory struct {
	Name       string `json:"name"`
	YearlyCost string `json:"yearly_cost"`
	Color      string `json:"color"`
}

// JSONSummary contains aggregate statistics
type JSONSummary struct {
	ActiveCount int    `json:"active_count"`
	YearlyTotal string `json:"yearly_total"`
	Formatted   string `json:"formatted"`
	Currency    string `json:"currency"`
}

// WriteJSON writes snap as indented JSON. Amounts are decimal strings.
func WriteJSON(w io.Writer, snap export.Snapshot) error {
	cur := snap.Currency
	if cur.Code == "" {
		cur = core.NewCurrency("USD")
	}
	out := JSONOutput{
		DarkTheme:     snap.State.DarkTheme,
		GhostMode:     snap.State.GhostMode,
		Subscriptions: make([]JSONSubscription, 0, len(snap.Subscriptions)),
		Categories:    make([]JSONCategory, 0, len(snap.Overview.ByCategory)),
		Summary: JSONSummary{
			ActiveCount: len(snap.Overview.Visible),
			YearlyTotal: snap.Overview.Total.Decimal().StringFixed(2),
			Formatted:   cur.Format(snap.Overview.Total),
			Currency:    cur.Code,
		},
	}
	for _, s := range snap.Subscriptions {
		out.Subscriptions = append(out.Subscriptions, JSONSubscription{
			ID:          s.ID,
			Name:        s.Name,
			Category:    s.Category,
			YearlyCost:  s.YearlyCost.Decimal().StringFixed(2),
			NextPayment: s.NextPayment.ISO(),
			Included:    !snap.State.Dimmed(s.ID),
		})
	}
	for _, c := range snap.Overview.ByCategory {
		out.Categories = append(out.Categories, JSONCategory{
			Name:       c.Name,
			YearlyCost: c.Amount.Decimal().StringFixed(2),
			Color:      c.Color,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
