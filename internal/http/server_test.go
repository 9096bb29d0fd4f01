package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"subtrack/internal/events"
	applog "subtrack/internal/log"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.DashboardEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev *events.DashboardEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
	}
	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

// client replays the session cookie like a browser would.
type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func (c *client) do(method, path string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.10:5000"
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == sessionCookie {
			if ck.MaxAge < 0 {
				c.cookie = nil
			} else {
				c.cookie = ck
			}
		}
	}
	return rr
}

func (c *client) state() dashboardJSON {
	c.t.Helper()
	rr := c.do(http.MethodGet, "/api/dashboard")
	if rr.Code != http.StatusOK {
		c.t.Fatalf("GET /api/dashboard status=%d", rr.Code)
	}
	var out dashboardJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		c.t.Fatalf("decode dashboard: %v", err)
	}
	return out
}

func visibleIDs(d dashboardJSON) []int {
	ids := make([]int, 0, len(d.Visible))
	for _, v := range d.Visible {
		ids = append(ids, v.ID)
	}
	return ids
}

func categoryTotals(d dashboardJSON) map[string]int64 {
	out := map[string]int64{}
	for _, c := range d.ByCategory {
		out[c.Name] = c.TotalCents
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIndexMountsView(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	rr := c.do(http.MethodGet, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if c.cookie == nil {
		t.Fatal("index should set the session cookie")
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Subscription Tracker",
		"Total Annual Cost",
		"$720",
		"Active Subscriptions",
		"services",
		"Cost by Category",
		"Subscription Details",
		"Gym Membership",
		"Next payment: 3/15/2024",
		"$120/year",
		"🌙",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if strings.Contains(body, "Add Back") || strings.Contains(body, ">Remove<") {
		t.Error("remove controls must be hidden outside ghost mode")
	}
	if srv.Sessions().Size() != 1 {
		t.Errorf("sessions = %d, want 1", srv.Sessions().Size())
	}

	// same cookie resumes the same view
	c.do(http.MethodGet, "/")
	if srv.Sessions().Size() != 1 {
		t.Errorf("resume should not mount a new view, sessions = %d", srv.Sessions().Size())
	}
}

func TestPageListensForTriggers(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}

	body := c.do(http.MethodGet, "/").Body.String()
	for _, want := range []string{`src="/static/app.js"`, `id="notifications"`, `<body class="theme-light">`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	rr := c.do(http.MethodGet, "/static/app.js")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /static/app.js status=%d", rr.Code)
	}
	js := rr.Body.String()
	for _, event := range []string{"theme:changed", "dashboard:changed", "show-notification"} {
		if !strings.Contains(js, `"`+event+`"`) {
			t.Errorf("app.js does not listen for %s", event)
		}
	}
}

func TestScenarioDefault(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")

	d := c.state()
	if d.TotalCents != 72000 || d.ActiveCount != 3 || d.Total != "$720" {
		t.Fatalf("default state = %+v", d)
	}
	got := categoryTotals(d)
	if got["Entertainment"] != 22000 || got["Fitness"] != 50000 || len(got) != 2 {
		t.Fatalf("categories = %v", got)
	}
	if d.ByCategory[0].Name != "Entertainment" {
		t.Errorf("category order = %+v", d.ByCategory)
	}
}

func TestScenarioGhostRemove(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")

	if rr := c.do(http.MethodPost, "/ui/ghost"); rr.Code != http.StatusOK {
		t.Fatalf("ghost status=%d", rr.Code)
	}
	rr := c.do(http.MethodPost, "/ui/subscriptions/2/toggle")
	if rr.Code != http.StatusOK {
		t.Fatalf("toggle status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"dashboard:changed"`) {
		t.Errorf("missing trigger: %q", rr.Header().Get("HX-Trigger"))
	}
	body := rr.Body.String()
	if !strings.Contains(body, "$620") || !strings.Contains(body, "Add Back") || !strings.Contains(body, "is-dimmed") {
		t.Errorf("fragment does not reflect removal:\n%s", body)
	}

	d := c.state()
	if !equalInts(visibleIDs(d), []int{1, 3}) || d.TotalCents != 62000 {
		t.Fatalf("state = %+v", d)
	}
	got := categoryTotals(d)
	if got["Entertainment"] != 12000 || got["Fitness"] != 50000 {
		t.Fatalf("categories = %v", got)
	}
}

func TestScenarioToggleTwiceRestores(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")
	c.do(http.MethodPost, "/ui/ghost")
	c.do(http.MethodPost, "/ui/subscriptions/2/toggle")
	c.do(http.MethodPost, "/ui/subscriptions/2/toggle")

	d := c.state()
	if !equalInts(visibleIDs(d), []int{1, 2, 3}) || d.TotalCents != 72000 {
		t.Fatalf("state = %+v", d)
	}
}

func TestScenarioGhostOffIgnoresSelection(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")
	c.do(http.MethodPost, "/ui/ghost")
	c.do(http.MethodPost, "/ui/subscriptions/3/toggle")
	c.do(http.MethodPost, "/ui/ghost")

	d := c.state()
	if d.GhostMode || !equalInts(visibleIDs(d), []int{1, 2, 3}) || d.TotalCents != 72000 {
		t.Fatalf("state = %+v", d)
	}
	// stale selection survives and applies again once ghost mode returns
	if !equalInts(d.Selected, []int{1, 2}) {
		t.Fatalf("selected = %v", d.Selected)
	}
	c.do(http.MethodPost, "/ui/ghost")
	if d := c.state(); d.TotalCents != 22000 {
		t.Fatalf("total after re-enabling ghost = %d", d.TotalCents)
	}
}

func TestThemeToggleDoesNotChangeTotals(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")

	rr := c.do(http.MethodPost, "/ui/theme")
	if rr.Code != http.StatusOK {
		t.Fatalf("theme status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "theme-dark") || !strings.Contains(rr.Body.String(), "🌞") {
		t.Error("fragment should render the dark theme")
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"theme:changed"`) {
		t.Errorf("missing theme trigger: %q", rr.Header().Get("HX-Trigger"))
	}
	d := c.state()
	if !d.DarkTheme || d.TotalCents != 72000 {
		t.Fatalf("state = %+v", d)
	}
}

func TestToggleSubscriptionBadIDs(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")
	c.do(http.MethodPost, "/ui/ghost")

	tests := []struct {
		path string
		want int
	}{
		{"/ui/subscriptions/abc/toggle", http.StatusBadRequest},
		{"/ui/subscriptions/-1/toggle", http.StatusBadRequest},
		{"/ui/subscriptions/99/toggle", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rr := c.do(http.MethodPost, tt.path); rr.Code != tt.want {
			t.Errorf("POST %s = %d, want %d", tt.path, rr.Code, tt.want)
		}
	}
	if d := c.state(); d.TotalCents != 72000 {
		t.Fatalf("rejected toggles must not change state, total=%d", d.TotalCents)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	if rr := c.do(http.MethodGet, "/ui/theme"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /ui/theme = %d", rr.Code)
	}
	if rr := c.do(http.MethodPost, "/"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST / = %d", rr.Code)
	}
	if rr := c.do(http.MethodGet, "/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", rr.Code)
	}
}

func TestExpiredViewIsRemounted(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := &client{t: t, srv: srv, cookie: &http.Cookie{Name: sessionCookie, Value: "gone"}}

	rr := c.do(http.MethodPost, "/ui/ghost")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Errorf("expected a reset notification, got %q", rr.Header().Get("HX-Trigger"))
	}
	if c.cookie == nil || c.cookie.Value == "gone" {
		t.Fatal("a fresh session cookie should be issued")
	}
	if d := c.state(); d.GhostMode {
		t.Fatal("toggle for an expired view must not be applied to the new one")
	}
}

func TestViewsAreIndependent(t *testing.T) {
	srv := newTestServer(t, Options{})
	a := &client{t: t, srv: srv}
	b := &client{t: t, srv: srv}
	a.do(http.MethodGet, "/")
	b.do(http.MethodGet, "/")

	a.do(http.MethodPost, "/ui/theme")
	if b.state().DarkTheme {
		t.Fatal("theme leaked between views")
	}
}

func TestChartSVG(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")

	rr := c.do(http.MethodGet, "/ui/chart.svg")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("chart status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), "<svg") {
		t.Fatal("body is not SVG")
	}

	// removing everything renders the placeholder
	c.do(http.MethodPost, "/ui/ghost")
	for _, id := range []string{"1", "2", "3"} {
		c.do(http.MethodPost, "/ui/subscriptions/"+id+"/toggle")
	}
	rr = c.do(http.MethodGet, "/ui/chart.svg")
	if !strings.Contains(rr.Body.String(), "No active subscriptions") {
		t.Fatalf("expected placeholder chart, got %.200s", rr.Body.String())
	}
}

func TestAPIChartData(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	d := c.state()
	if len(d.Chart.Datasets) != 1 || d.Chart.Datasets[0].Label != "Yearly Cost by Category" {
		t.Fatalf("chart = %+v", d.Chart)
	}
	if !equalInts([]int{len(d.Chart.Labels)}, []int{2}) || d.Chart.Datasets[0].BackgroundColor[1] != "#4ECDC4" {
		t.Fatalf("chart = %+v", d.Chart)
	}
	if d.Visible[0].YearlyCost != "120.00" || d.Visible[0].NextPayment != "2024-03-15" {
		t.Fatalf("visible = %+v", d.Visible[0])
	}
}

func TestExportXLSX(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")

	rr := c.do(http.MethodGet, "/export.xlsx")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "subscriptions.xlsx") {
		t.Errorf("disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 2 {
		t.Fatalf("sheets = %v", sheets)
	}
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (p *blockingPublisher) Publish(ctx context.Context, _ *events.DashboardEvent) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *blockingPublisher) Close() error { return nil }

func TestEmitAfterShutdownIsDropped(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	srv := newTestServer(t, Options{Publisher: pub})
	c := &client{t: t, srv: srv}
	c.do(http.MethodGet, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = srv.Shutdown(ctx) // times out with the mount event still pending

	if rr := c.do(http.MethodPost, "/ui/theme"); rr.Code != http.StatusOK {
		t.Fatalf("theme status=%d", rr.Code)
	}
	close(pub.release)
	srv.publishing.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.calls != 1 {
		t.Fatalf("publish calls = %d, want only the mount event", pub.calls)
	}
}

func TestEndSessionUnmounts(t *testing.T) {
	pub := &recordingPublisher{}
	srv := newTestServer(t, Options{Publisher: pub})
	c := &client{t: t, srv: srv}
	c.do(http.MethodGet, "/")
	c.do(http.MethodPost, "/ui/theme")

	rr := c.do(http.MethodPost, "/session/end")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("end status=%d", rr.Code)
	}
	if c.cookie != nil {
		t.Error("cookie should be cleared")
	}
	if srv.Sessions().Size() != 0 {
		t.Errorf("sessions = %d, want 0", srv.Sessions().Size())
	}

	srv.publishing.Wait()
	want := []events.Kind{events.KindMounted, events.KindThemeToggled, events.KindUnmounted}
	got := pub.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for _, k := range want {
		found := false
		for _, g := range got {
			found = found || g == k
		}
		if !found {
			t.Errorf("missing event %s in %v", k, got)
		}
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	c.do(http.MethodGet, "/")
	c.do(http.MethodPost, "/ui/theme")

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := c.do(http.MethodGet, path)
		if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/json" {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr := c.do(http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	out := rr.Body.String()
	for _, want := range []string{
		`subtrack_dashboard_toggles_total{target="theme"} 1`,
		`subtrack_views_active 1`,
		`route="POST /ui/theme"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{})}
	rr := c.do(http.MethodGet, "/")
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("headers = %v", rr.Header())
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}

func TestRateLimitOnPost(t *testing.T) {
	c := &client{t: t, srv: newTestServer(t, Options{RateLimitPerMinute: 2})}
	c.do(http.MethodGet, "/")
	c.do(http.MethodPost, "/ui/theme")
	c.do(http.MethodPost, "/ui/theme")

	rr := c.do(http.MethodPost, "/ui/theme")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("third POST = %d", rr.Code)
	}
	if rr := c.do(http.MethodGet, "/ui/dashboard"); rr.Code != http.StatusOK {
		t.Fatalf("GET must not be limited, got %d", rr.Code)
	}
}

func TestBarWidth(t *testing.T) {
	tests := []struct {
		cents, max int64
		want       int
	}{
		{0, 100, 0},
		{50, 0, 0},
		{50000, 50000, 100},
		{22000, 50000, 44},
		{1, 50000, 2},
	}
	for _, tt := range tests {
		if got := barWidth(tt.cents, tt.max); got != tt.want {
			t.Errorf("barWidth(%d, %d) = %d, want %d", tt.cents, tt.max, got, tt.want)
		}
	}
}
