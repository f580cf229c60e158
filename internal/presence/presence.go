// Package presence mirrors the relay's connected clients into Redis and
// publishes lifecycle notices for other services to consume.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"relay-server/internal/logger"
	"relay-server/internal/relay"

	"github.com/go-redis/redis/v8"
)

// RedisClient is the subset of *redis.Client used by Tracker.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type Config struct {
	NodeID    string
	KeyPrefix string
	Channel   string
	Logger    *logger.Logger
}

// Entry is the value stored per client in the presence hash.
type Entry struct {
	ConnectedAt time.Time `json:"connectedAt"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
}

// Notice is the message published on the events channel.
type Notice struct {
	NodeID string      `json:"nodeId"`
	Event  relay.Event `json:"event"`
}

type Tracker struct {
	client  RedisClient
	key     string
	channel string
	nodeID  string
	logger  *logger.Logger
}

func NewTracker(client RedisClient, cfg Config) *Tracker {
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}
	return &Tracker{
		client:  client,
		key:     fmt.Sprintf("%s:%s:presence", cfg.KeyPrefix, cfg.NodeID),
		channel: cfg.Channel,
		nodeID:  cfg.NodeID,
		logger:  cfg.Logger.With("component", "presence"),
	}
}

// Connect opens a Redis client and checks that the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("presence: redis ping: %w", err)
	}
	return client, nil
}

func (t *Tracker) Key() string {
	return t.key
}

// Reset drops whatever a previous run of this node left behind.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.client.Del(ctx, t.key).Err(); err != nil {
		return fmt.Errorf("presence: reset %s: %w", t.key, err)
	}
	return nil
}

// Observe updates the presence hash and publishes the event.
func (t *Tracker) Observe(ctx context.Context, ev relay.Event) error {
	switch ev.Type {
	case relay.EventConnected:
		entry, err := json.Marshal(Entry{ConnectedAt: ev.At, RemoteAddr: ev.RemoteAddr})
		if err != nil {
			return fmt.Errorf("presence: marshal entry: %w", err)
		}
		if err := t.client.HSet(ctx, t.key, ev.ClientID, string(entry)).Err(); err != nil {
			return fmt.Errorf("presence: hset %s: %w", ev.ClientID, err)
		}
	case relay.EventDisconnected:
		if err := t.client.HDel(ctx, t.key, ev.ClientID).Err(); err != nil {
			return fmt.Errorf("presence: hdel %s: %w", ev.ClientID, err)
		}
	default:
		return fmt.Errorf("presence: unknown event type %q", ev.Type)
	}

	return t.publish(ctx, ev)
}

func (t *Tracker) publish(ctx context.Context, ev relay.Event) error {
	if t.channel == "" {
		return nil
	}
	payload, err := json.Marshal(Notice{NodeID: t.nodeID, Event: ev})
	if err != nil {
		return fmt.Errorf("presence: marshal notice: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("presence: publish: %w", err)
	}
	t.logger.Debug("published lifecycle event", "client_id", ev.ClientID, "event", ev.Type)
	return nil
}
