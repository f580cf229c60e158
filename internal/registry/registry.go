package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNilConn           = errors.New("registry: connection cannot be nil")
	ErrAlreadyRegistered = errors.New("registry: connection already registered")
	ErrDuplicateID       = errors.New("registry: generated client id is already in use")
)

// Conn is a live transport-level connection. Implementations must be
// comparable (pointer types in practice) because the registry indexes them.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Client is one registered participant.
type Client struct {
	ID          string
	Conn        Conn
	ConnectedAt time.Time
}

// Registry is the authoritative id -> client mapping, with a reverse index
// by connection. Reads share a lock; registration and removal are exclusive.
//
// A client added with Reserve is pending: it owns its id and counts towards
// Size, but Snapshot leaves it out until Activate is called.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	byConn  map[Conn]string
	pending map[string]struct{}
	newID   func() string
	now     func() time.Time
}

type Option func(*Registry)

// WithIDGenerator replaces the default UUIDv4 generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		clients: make(map[string]Client),
		byConn:  make(map[Conn]string),
		pending: make(map[string]struct{}),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register assigns a fresh id to conn and records it as active.
func (r *Registry) Register(conn Conn) (Client, error) {
	return r.add(conn, false)
}

// Reserve records conn like Register but keeps it out of Snapshot until
// Activate. Frames meant for the new client alone can be queued in between
// without a concurrent broadcast getting ahead of them.
func (r *Registry) Reserve(conn Conn) (Client, error) {
	return r.add(conn, true)
}

// Activate makes a reserved client visible to Snapshot. It reports false when
// id is not registered.
func (r *Registry) Activate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.pending, id)
	return true
}

func (r *Registry) add(conn Conn, pending bool) (Client, error) {
	if conn == nil {
		return Client{}, ErrNilConn
	}

	id := r.newID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byConn[conn]; ok {
		return Client{}, fmt.Errorf("%w as %s", ErrAlreadyRegistered, existing)
	}
	if _, ok := r.clients[id]; ok {
		return Client{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	client := Client{ID: id, Conn: conn, ConnectedAt: r.now()}
	r.clients[id] = client
	r.byConn[conn] = id
	if pending {
		r.pending[id] = struct{}{}
	}
	return client, nil
}

// UnregisterByConn removes the client owning conn. Unknown or already removed
// connections are a no-op and report false.
func (r *Registry) UnregisterByConn(conn Conn) (Client, bool) {
	if conn == nil {
		return Client{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byConn[conn]
	if !ok {
		return Client{}, false
	}
	client := r.clients[id]
	delete(r.byConn, conn)
	delete(r.clients, id)
	delete(r.pending, id)
	return client, true
}

func (r *Registry) FindByConn(conn Conn) (Client, bool) {
	if conn == nil {
		return Client{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byConn[conn]
	if !ok {
		return Client{}, false
	}
	return r.clients[id], true
}

func (r *Registry) Get(id string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[id]
	return client, ok
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot copies the active entries. The copy is consistent with a single
// instant and can be used without holding any lock.
func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]Client, 0, len(r.clients)-len(r.pending))
	for id, client := range r.clients {
		if _, ok := r.pending[id]; ok {
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

// ForEach visits a snapshot of the registry. fn runs outside the lock, so it
// may perform I/O or call back into the registry.
func (r *Registry) ForEach(fn func(Client)) {
	for _, client := range r.Snapshot() {
		fn(client)
	}
}
