// Package relay routes decoded client frames and fans out lifecycle
// notifications over the connections held in a registry.
package relay

import (
	"errors"
	"sort"
	"time"

	"relay-server/internal/logger"
	"relay-server/internal/protocol"
	"relay-server/internal/queue"
	"relay-server/internal/registry"
)

var ErrClientNotFound = errors.New("relay: client not found")

const defaultObserverTimeout = 5 * time.Second

type Config struct {
	// SendWelcome sends the assigned id to a new connection before the
	// CONNECT broadcast goes out to the others.
	SendWelcome bool
	Now         func() time.Time
	Logger      *logger.Logger
	Metrics     *Metrics

	// Events runs observers. When nil, observers run inline.
	Events          *queue.RequestQueueManager
	Observers       []Observer
	ObserverTimeout time.Duration
}

type Relay struct {
	registry        *registry.Registry
	sendWelcome     bool
	now             func() time.Time
	logger          *logger.Logger
	metrics         *Metrics
	events          *queue.RequestQueueManager
	observers       []Observer
	observerTimeout time.Duration
}

func New(reg *registry.Registry, cfg Config) *Relay {
	if reg == nil {
		reg = registry.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}
	if cfg.ObserverTimeout <= 0 {
		cfg.ObserverTimeout = defaultObserverTimeout
	}

	return &Relay{
		registry:        reg,
		sendWelcome:     cfg.SendWelcome,
		now:             cfg.Now,
		logger:          cfg.Logger.With("component", "relay"),
		metrics:         cfg.Metrics,
		events:          cfg.Events,
		observers:       cfg.Observers,
		observerTimeout: cfg.ObserverTimeout,
	}
}

func (r *Relay) Registry() *registry.Registry {
	return r.registry
}

// OnOpen registers conn and announces it. When welcomes are enabled, the
// WELCOME is queued before conn becomes a broadcast target, so it is always
// the first frame the client sees. The caller must close conn when an error
// is returned.
func (r *Relay) OnOpen(conn registry.Conn) (registry.Client, error) {
	client, err := r.registry.Reserve(conn)
	if err != nil {
		r.metrics.incRejected()
		if errors.Is(err, registry.ErrDuplicateID) {
			r.logger.ErrorWithErr("refusing connection", err)
		} else {
			r.logger.WarnWithErr("refusing connection", err)
		}
		return registry.Client{}, err
	}

	total := r.registry.Size()
	r.metrics.setClients(total)
	r.logger.Info("client connected", "client_id", client.ID, "total_clients", total)

	if r.sendWelcome {
		r.Send(conn, protocol.Welcome{ClientID: client.ID, TotalClients: total})
	}
	r.registry.Activate(client.ID)
	r.Broadcast(protocol.Connect{ClientID: client.ID, TotalClients: total}, client.ID)

	r.notify(Event{
		Type:         EventConnected,
		ClientID:     client.ID,
		TotalClients: total,
		RemoteAddr:   remoteAddr(conn),
		At:           client.ConnectedAt,
	})
	return client, nil
}

// OnClose removes conn and tells the remaining clients. Calling it for an
// unknown or already removed connection does nothing.
func (r *Relay) OnClose(conn registry.Conn) {
	client, ok := r.registry.UnregisterByConn(conn)
	if !ok {
		return
	}

	total := r.registry.Size()
	r.metrics.setClients(total)
	r.logger.Info("client disconnected", "client_id", client.ID, "total_clients", total)

	r.Broadcast(protocol.Disconnect{ClientID: client.ID, TotalClients: total})

	r.notify(Event{
		Type:         EventDisconnected,
		ClientID:     client.ID,
		TotalClients: total,
		RemoteAddr:   remoteAddr(conn),
		At:           r.now(),
	})
}

// OnMessage decodes one inbound frame and dispatches it. Frames that fail to
// decode are logged and dropped; the connection stays open.
func (r *Relay) OnMessage(conn registry.Conn, raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		r.metrics.incDecodeErrors()
		r.logger.WarnWithErr("dropping undecodable frame", err, "remote_addr", remoteAddr(conn), "size", len(raw))
		return
	}
	r.metrics.incReceived(msg.Kind())
	r.Dispatch(conn, msg)
}

// Dispatch applies the routing table for a message received on conn.
func (r *Relay) Dispatch(conn registry.Conn, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Ping:
		r.Send(conn, protocol.Pong{ClientTime: m.ClientTime, ServerTime: r.now().UnixMilli()})

	case protocol.Echo:
		r.Send(conn, m)

	case protocol.Broadcast:
		sender, ok := r.registry.FindByConn(conn)
		if !ok {
			r.logger.Debug("broadcast from unregistered connection dropped", "remote_addr", remoteAddr(conn))
			return
		}
		r.Broadcast(protocol.Broadcast{ClientID: sender.ID, Data: m.Data}, sender.ID)

	case protocol.Unrecognized:
		r.Send(conn, protocol.Echo{Data: m.Data})

	default:
		payload, err := protocol.Payload(msg)
		if err != nil {
			r.logger.WarnWithErr("cannot echo message", err, "kind", msg.Kind().String())
			return
		}
		r.Send(conn, protocol.Echo{Data: payload})
	}
}

// Disconnect closes the connection of the client with the given id. The
// transport's close path unregisters it and broadcasts DISCONNECT.
func (r *Relay) Disconnect(id string) error {
	client, ok := r.registry.Get(id)
	if !ok {
		return ErrClientNotFound
	}
	r.logger.Info("disconnecting client", "client_id", id)
	return client.Conn.Close()
}

// ClientInfo is a read-only view of a registered client.
type ClientInfo struct {
	ID          string
	ConnectedAt time.Time
	RemoteAddr  string
}

// Clients lists the registered clients, oldest first.
func (r *Relay) Clients() []ClientInfo {
	snapshot := r.registry.Snapshot()
	out := make([]ClientInfo, 0, len(snapshot))
	for _, c := range snapshot {
		out = append(out, ClientInfo{
			ID:          c.ID,
			ConnectedAt: c.ConnectedAt,
			RemoteAddr:  remoteAddr(c.Conn),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// CloseAll closes every registered connection and returns how many were
// closed. Used on shutdown, when hijacked connections outlive the HTTP server.
func (r *Relay) CloseAll() int {
	n := 0
	for _, c := range r.registry.Snapshot() {
		if err := c.Conn.Close(); err != nil {
			r.logger.Debug("close failed", "client_id", c.ID, "error", err)
		}
		n++
	}
	return n
}
