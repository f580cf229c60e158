package relay

import (
	"context"
	"time"

	"relay-server/internal/queue"
)

type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
)

// Event describes a registry change after it happened.
type Event struct {
	Type         EventType `json:"type"`
	ClientID     string    `json:"client_id"`
	TotalClients int       `json:"total_clients"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	At           time.Time `json:"at"`
}

// Observer receives lifecycle events off the connection's goroutine. Errors
// are logged and never affect routing.
type Observer interface {
	Observe(ctx context.Context, ev Event) error
}

type ObserverFunc func(ctx context.Context, ev Event) error

func (f ObserverFunc) Observe(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

type remoteAddresser interface {
	RemoteAddr() string
}

func remoteAddr(conn any) string {
	if ra, ok := conn.(remoteAddresser); ok {
		return ra.RemoteAddr()
	}
	return ""
}

func (r *Relay) notify(ev Event) {
	for _, obs := range r.observers {
		run := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), r.observerTimeout)
			defer cancel()
			return obs.Observe(ctx, ev)
		}

		if r.events == nil {
			if err := run(); err != nil {
				r.logger.WarnWithErr("lifecycle observer failed", err, "client_id", ev.ClientID, "event", ev.Type)
			}
			continue
		}

		if !r.events.TryEnqueueJob(queue.Job{Fn: run}) {
			r.logger.Warn("event queue full, dropping lifecycle event", "client_id", ev.ClientID, "event", ev.Type)
		}
	}
}
