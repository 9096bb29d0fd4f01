package http

import (
	"bytes"
	"context"
	"net/http"

	"subtrack/internal/core"
	"subtrack/internal/events"
	applog "subtrack/internal/log"
	"subtrack/internal/session"
)

// handleIndex mounts or resumes the view and renders the whole page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v, mounted := s.viewFor(w, r)
	if !mounted {
		s.structured.LogMount(r.Context(), v.ID, true)
	}
	st, ov := v.Dashboard.View()
	s.render(w, r, "dashboard_page", s.buildView(v.Dashboard.Subscriptions(), st, ov), NewHTMXResponse())
}

// handleDashboardPartial re-renders the dashboard fragment without changes.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	v, _ := s.viewFor(w, r)
	st, ov := v.Dashboard.View()
	s.render(w, r, "dashboard", s.buildView(v.Dashboard.Subscriptions(), st, ov), NewHTMXResponse())
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "theme", core.Event{Kind: core.EventToggleTheme})
}

func (s *Server) handleToggleGhost(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "ghost", core.Event{Kind: core.EventToggleGhostMode})
}

// handleToggleSubscription flips one id in the selection. Ids come from the
// client, so they are checked against the catalog first.
func (s *Server) handleToggleSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if !s.sessions.Catalog().Has(id) {
		NotFoundError("Unknown subscription").Write(w)
		return
	}
	s.mutate(w, r, "subscription", core.Event{Kind: core.EventToggleSubscription, ID: id})
}

// mutate applies ev to the caller's view and answers with the re-derived
// fragment. A request arriving for an expired view mounts a fresh one and
// renders it unchanged, since the toggle referred to state that is gone.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, target string, ev core.Event) {
	v, mounted := s.viewFor(w, r)
	resp := NewHTMXResponse()
	if mounted {
		st, ov := v.Dashboard.View()
		resp.TriggerInfoNotification("Your dashboard session expired and was reset")
		s.render(w, r, "dashboard", s.buildView(v.Dashboard.Subscriptions(), st, ov), resp)
		return
	}

	st, ov := v.Dashboard.Apply(ev)

	total := ov.Total.Cents
	s.metrics.Toggle(target)
	s.structured.LogToggle(r.Context(), v.ID, target, st.DarkTheme, st.GhostMode, st.Selected.IDs(), total)
	s.emit(r, v.ID, newEvent(v.ID, kindFor(target), ev.ID, st, ov))

	resp.TriggerDashboardChanged(st.DarkTheme, st.GhostMode, len(ov.Visible), total)
	if target == "theme" {
		resp.TriggerThemeChanged(st.DarkTheme)
	}
	s.render(w, r, "dashboard", s.buildView(v.Dashboard.Subscriptions(), st, ov), resp)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data dashboardView, resp *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structured.LogError(r.Context(), "Template execution failed", err, applog.OpRender,
			applog.NewFields().WithComponent(applog.ComponentTemplate))
		InternalServerError("Could not render dashboard").Write(w)
		return
	}
	resp.BodyHTML(buf.Bytes()).Write(w)
}

func kindFor(target string) events.Kind {
	switch target {
	case "theme":
		return events.KindThemeToggled
	case "ghost":
		return events.KindGhostToggled
	default:
		return events.KindSubscriptionToggled
	}
}

func newEvent(sessionID string, kind events.Kind, subID int, st core.State, ov core.Overview) *events.DashboardEvent {
	ev := events.NewDashboardEvent(sessionID, kind)
	ev.SubscriptionID = subID
	ev.Dark = st.DarkTheme
	ev.Ghost = st.GhostMode
	ev.Selected = st.Selected.IDs()
	ev.TotalCents = ov.Total.Cents
	return ev
}

// emit publishes ev in the background. Failures are logged and counted and
// never reach the client. Events emitted after Shutdown are dropped.
func (s *Server) emit(r *http.Request, sessionID string, ev *events.DashboardEvent) {
	var ctx context.Context = context.Background()
	if r != nil {
		ctx = context.WithoutCancel(r.Context())
	}
	s.emitMu.Lock()
	if s.emitClosed {
		s.emitMu.Unlock()
		s.logger.DebugContext(ctx, "Dashboard event dropped after shutdown",
			applog.FieldSession, sessionID,
			"kind", ev.Kind)
		return
	}
	s.publishing.Add(1)
	s.emitMu.Unlock()
	go func() {
		defer s.publishing.Done()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.metrics.PublishFailed()
			s.logger.WithComponent(applog.ComponentEvents).WarnContext(ctx, "Dashboard event not published",
				applog.FieldSession, sessionID,
				"kind", ev.Kind,
				applog.FieldError, err)
		}
	}()
}

// handleUnmount runs when a view leaves the store, explicitly or by eviction.
func (s *Server) handleUnmount(v *session.View, reason string) {
	ctx := context.Background()
	s.metrics.Unmounted(reason)
	s.structured.LogUnmount(ctx, v.ID, reason)
	st, ov := v.Dashboard.View()
	ev := newEvent(v.ID, events.KindUnmounted, 0, st, ov)
	ev.Reason = reason
	s.emit(nil, v.ID, ev)
}
