// Package events fans dashboard state changes out over AMQP.
package events

import "context"

// Publisher sends dashboard events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev *DashboardEvent) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, *DashboardEvent) error { return nil }
func (Noop) Close() error                                   { return nil }
