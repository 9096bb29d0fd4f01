package http

import (
	"subtrack/internal/chart"
	"subtrack/internal/core"
)

type categoryRow struct {
	Name   string
	Amount string
	Color  string
	Width  int
}

type subscriptionRow struct {
	ID          int
	Name        string
	Category    string
	Color       string
	Cost        string
	NextPayment string
	Logo        string
	Selected    bool
	Dimmed      bool
}

// dashboardView is everything the dashboard templates render.
type dashboardView struct {
	Dark          bool
	Ghost         bool
	ThemeIcon     string
	Total         string
	ActiveCount   int
	Categories    []categoryRow
	Subscriptions []subscriptionRow
	ChartKey      string
}

func (s *Server) buildView(subs []core.Subscription, st core.State, ov core.Overview) dashboardView {
	v := dashboardView{
		Dark:        st.DarkTheme,
		Ghost:       st.GhostMode,
		ThemeIcon:   "🌙",
		Total:       s.currency.Format(ov.Total),
		ActiveCount: len(ov.Visible),
		ChartKey:    chart.Key(ov.ByCategory, st.DarkTheme),
	}
	if st.DarkTheme {
		v.ThemeIcon = "🌞"
	}

	var maxCents int64
	for _, c := range ov.ByCategory {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}
	for _, c := range ov.ByCategory {
		v.Categories = append(v.Categories, categoryRow{
			Name:   c.Name,
			Amount: s.currency.Format(c.Amount),
			Color:  c.Color,
			Width:  barWidth(c.Amount.Cents, maxCents),
		})
	}

	for _, sub := range subs {
		v.Subscriptions = append(v.Subscriptions, subscriptionRow{
			ID:          sub.ID,
			Name:        sub.Name,
			Category:    sub.Category,
			Color:       core.CategoryColor(sub.Category),
			Cost:        s.currency.Format(sub.YearlyCost),
			NextPayment: core.FormatDate(sub.NextPayment),
			Logo:        sub.Logo,
			Selected:    st.Selected.Contains(sub.ID),
			Dimmed:      st.Dimmed(sub.ID),
		})
	}
	return v
}

// barWidth scales cents to a percentage of maxCents, rounded, with a floor
// of 2 so tiny non-zero values stay visible.
func barWidth(cents, maxCents int64) int {
	if maxCents <= 0 || cents <= 0 {
		return 0
	}
	w := int((cents*100 + maxCents/2) / maxCents)
	if w < 2 {
		w = 2
	}
	if w > 100 {
		w = 100
	}
	return w
}
