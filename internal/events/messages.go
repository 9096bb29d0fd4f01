package events

import (
	"encoding/json"
	"time"
)

// Kind names what happened to a dashboard view.
type Kind string

const (
	KindMounted             Kind = "mounted"
	KindUnmounted           Kind = "unmounted"
	KindThemeToggled        Kind = "theme_toggled"
	KindGhostToggled        Kind = "ghost_toggled"
	KindSubscriptionToggled Kind = "subscription_toggled"
)

// DashboardEvent is published after every state change of a view. It carries
// the resulting state so consumers never need to replay history.
type DashboardEvent struct {
	Session        string    `json:"session"`
	Kind           Kind      `json:"kind"`
	SubscriptionID int       `json:"subscription_id,omitempty"`
	Dark           bool      `json:"dark"`
	Ghost          bool      `json:"ghost"`
	Selected       []int     `json:"selected"`
	TotalCents     int64     `json:"total_cents"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewDashboardEvent stamps a new event for session.
func NewDashboardEvent(session string, kind Kind) *DashboardEvent {
	return &DashboardEvent{
		Session:   session,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func (e *DashboardEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// DashboardEventFromJSON decodes an event body.
func DashboardEventFromJSON(data []byte) (*DashboardEvent, error) {
	var ev DashboardEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
