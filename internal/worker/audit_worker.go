// Package worker processes dashboard events consumed from the broker.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"subtrack/internal/events"
	applog "subtrack/internal/log"
)

// ViewState is the last known state of one view, as reported by its events.
type ViewState struct {
	Session    string
	Dark       bool
	Ghost      bool
	Selected   []int
	TotalCents int64
	Events     int
	LastSeen   time.Time
}

// Summary aggregates what the worker has seen since start.
type Summary struct {
	ByKind      map[events.Kind]int
	ActiveViews int
	Ended       int
}

// AuditWorker keeps the latest state per mounted view and counts events.
// Unmounted views are dropped.
type AuditWorker struct {
	mu     sync.Mutex
	logger *applog.Logger
	views  map[string]*ViewState
	byKind map[events.Kind]int
	ended  int
}

func NewAuditWorker(logger *applog.Logger) *AuditWorker {
	return &AuditWorker{
		logger: logger.WithComponent(applog.ComponentEvents),
		views:  make(map[string]*ViewState),
		byKind: make(map[events.Kind]int),
	}
}

// HandleEvent records ev. Events without a session are rejected so the
// broker dead-letters them instead of requeueing forever.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev *events.DashboardEvent) error {
	if ev.Session == "" {
		return fmt.Errorf("event %s without session", ev.Kind)
	}

	w.mu.Lock()
	w.byKind[ev.Kind]++
	if ev.Kind == events.KindUnmounted {
		delete(w.views, ev.Session)
		w.ended++
	} else {
		v, ok := w.views[ev.Session]
		if !ok {
			v = &ViewState{Session: ev.Session}
			w.views[ev.Session] = v
		}
		// brokers may redeliver out of order; keep the newest state
		if !ev.Timestamp.Before(v.LastSeen) {
			v.Dark = ev.Dark
			v.Ghost = ev.Ghost
			v.Selected = append([]int(nil), ev.Selected...)
			v.TotalCents = ev.TotalCents
			v.LastSeen = ev.Timestamp
		}
		v.Events++
	}
	w.mu.Unlock()

	fields := applog.NewFields().
		WithSession(ev.Session).
		WithOperation(applog.OpConsume).
		WithDashboard(ev.Dark, ev.Ghost, ev.Selected, ev.TotalCents)
	fields["kind"] = ev.Kind
	if ev.SubscriptionID != 0 {
		fields[applog.FieldSubscriptionID] = ev.SubscriptionID
	}
	if ev.Reason != "" {
		fields[applog.FieldReason] = ev.Reason
	}
	w.logger.InfoContext(ctx, "Dashboard event", fields.ToSlice()...)
	return nil
}

// View returns the last known state of a session.
func (w *AuditWorker) View(session string) (ViewState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.views[session]
	if !ok {
		return ViewState{}, false
	}
	out := *v
	out.Selected = append([]int(nil), v.Selected...)
	return out, true
}

func (w *AuditWorker) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Summary{
		ByKind:      make(map[events.Kind]int, len(w.byKind)),
		ActiveViews: len(w.views),
		Ended:       w.ended,
	}
	for k, n := range w.byKind {
		s.ByKind[k] = n
	}
	return s
}

// ForgetIdle drops views not seen since before cutoff and returns how many
// were dropped. The server unmounts idle views on its own; this bounds
// memory when unmount events are lost.
func (w *AuditWorker) ForgetIdle(cutoff time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for id, v := range w.views {
		if v.LastSeen.Before(cutoff) {
			delete(w.views, id)
			n++
		}
	}
	return n
}

// Run logs a summary every interval and forgets views idle for longer than
// idle, until ctx is done.
func (w *AuditWorker) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			forgotten := w.ForgetIdle(now.Add(-idle))
			s := w.Summary()
			kinds := make([]string, 0, len(s.ByKind))
			for k := range s.ByKind {
				kinds = append(kinds, fmt.Sprintf("%s=%d", k, s.ByKind[k]))
			}
			sort.Strings(kinds)
			w.logger.InfoContext(ctx, "Audit summary",
				"active_views", s.ActiveViews,
				"ended_views", s.Ended,
				"forgotten", forgotten,
				"by_kind", kinds)
		}
	}
}
