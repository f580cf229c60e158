package websocket

import (
	"errors"
	"time"

	"relay-server/internal/logger"
	"relay-server/internal/registry"
)

var (
	ErrConnectionClosed = errors.New("websocket: connection closed")
	ErrSendBufferFull   = errors.New("websocket: send buffer full")
)

// Hooks receives the transport events of every upgraded connection.
// *relay.Relay implements it.
type Hooks interface {
	OnOpen(conn registry.Conn) (registry.Client, error)
	OnClose(conn registry.Conn)
	OnMessage(conn registry.Conn, raw []byte)
}

type Options struct {
	// AllowedOrigins lists the Origin header values accepted on upgrade.
	// "*" accepts any origin. Requests without an Origin header are always
	// accepted.
	AllowedOrigins []string
	SendBuffer     int
	ReadLimit      int64
	// PingInterval of zero disables keepalive pings and read deadlines.
	PingInterval time.Duration
	WriteTimeout time.Duration
	Logger       *logger.Logger
	Metrics      *Metrics
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 512 * 1024
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logger.Get()
	}
	return o
}

// pongWait is how long a connection may stay silent before it is dropped.
func (o Options) pongWait() time.Duration {
	return o.PingInterval*2 + o.WriteTimeout
}
