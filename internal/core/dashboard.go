package core

import "sync"

// State is a copy of the mutable dashboard fields.
type State struct {
	DarkTheme bool
	GhostMode bool
	Selected  Selection
}

// Dimmed reports whether a list row for id is shown as removed.
func (s State) Dimmed(id int) bool {
	return s.GhostMode && !s.Selected.Contains(id)
}

// Dashboard owns the state of one dashboard view. Every mutation is applied
// under the lock, so events for the same view are handled one at a time.
type Dashboard struct {
	mu       sync.Mutex
	subs     []Subscription
	dark     bool
	ghost    bool
	selected Selection
}

// NewDashboard starts with both flags off and every subscription selected.
func NewDashboard(subs []Subscription) *Dashboard {
	ids := make([]int, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	cp := make([]Subscription, len(subs))
	copy(cp, subs)
	return &Dashboard{subs: cp, selected: NewSelection(ids...)}
}

// EventKind names a user interaction with the dashboard.
type EventKind int

const (
	EventToggleTheme EventKind = iota + 1
	EventToggleGhostMode
	EventToggleSubscription
)

// Event is one interaction. ID is only read for EventToggleSubscription.
type Event struct {
	Kind EventKind
	ID   int
}

// Apply handles ev and returns the resulting state and overview, all under
// one lock, so the result is exactly what ev produced.
func (d *Dashboard) Apply(ev Event) (State, Overview) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(ev)
	return d.stateLocked(), Derive(d.subs, d.ghost, d.selected)
}

func (d *Dashboard) apply(ev Event) {
	switch ev.Kind {
	case EventToggleTheme:
		d.dark = !d.dark
	case EventToggleGhostMode:
		d.ghost = !d.ghost
	case EventToggleSubscription:
		d.selected.Toggle(ev.ID)
	}
}

// ToggleTheme flips the dark theme flag and returns the new value.
func (d *Dashboard) ToggleTheme() bool {
	st, _ := d.Apply(Event{Kind: EventToggleTheme})
	return st.DarkTheme
}

// ToggleGhostMode flips ghost mode. The selection is left as it is in both
// directions.
func (d *Dashboard) ToggleGhostMode() bool {
	st, _ := d.Apply(Event{Kind: EventToggleGhostMode})
	return st.GhostMode
}

// ToggleSubscription flips membership of id and returns the new membership.
func (d *Dashboard) ToggleSubscription(id int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply(Event{Kind: EventToggleSubscription, ID: id})
	return d.selected.Contains(id)
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateLocked()
}

func (d *Dashboard) stateLocked() State {
	return State{DarkTheme: d.dark, GhostMode: d.ghost, Selected: d.selected.Clone()}
}

// Overview derives totals from the current state.
func (d *Dashboard) Overview() Overview {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Derive(d.subs, d.ghost, d.selected)
}

// View returns state and overview taken under a single lock.
func (d *Dashboard) View() (State, Overview) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateLocked(), Derive(d.subs, d.ghost, d.selected)
}

// Subscriptions returns the full catalog the dashboard was built from.
func (d *Dashboard) Subscriptions() []Subscription {
	out := make([]Subscription, len(d.subs))
	copy(out, d.subs)
	return out
}
