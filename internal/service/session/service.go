// Package session keeps an audit trail of client connections.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relay-server/internal/config"
	"relay-server/internal/database"
	"relay-server/internal/logger"
	"relay-server/internal/model"
	"relay-server/internal/relay"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Service struct {
	repo   Repository
	nodeID string
	logger *logger.Logger
}

func NewService(repo Repository, nodeID string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		repo:   repo,
		nodeID: nodeID,
		logger: log.With("component", "sessions"),
	}
}

// NewRepository builds the repository selected by cfg.Sessions.Store. It
// returns nil when session auditing is disabled.
func NewRepository(ctx context.Context, cfg *config.Config) (Repository, error) {
	switch cfg.Sessions.Store {
	case config.StoreNone, "":
		return nil, nil
	case config.StoreDynamoDB:
		db, err := database.NewDatabase(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		repo := NewDynamoRepository(db, cfg.Sessions.Table)
		if cfg.AWS.Endpoint != "" {
			if err := repo.EnsureTable(ctx); err != nil {
				return nil, err
			}
		}
		return repo, nil
	case config.StoreSQLite, config.StoreMySQL:
		driver := DriverSQLite
		if cfg.Sessions.Store == config.StoreMySQL {
			driver = DriverMySQL
		}
		repo, err := OpenSQLRepository(ctx, driver, cfg.Sessions.DSN, cfg.Sessions.Table)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("session store: unknown backend %q", cfg.Sessions.Store)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(model.TimestampLayout)
}

// Observe records connects and disconnects reported by the relay.
func (s *Service) Observe(ctx context.Context, ev relay.Event) error {
	sessionID := model.NodeScopedPK(s.nodeID, ev.ClientID)

	switch ev.Type {
	case relay.EventConnected:
		return s.repo.CreateSession(ctx, model.SessionItem{
			SessionID:   sessionID,
			NodeID:      s.nodeID,
			ClientID:    ev.ClientID,
			RemoteAddr:  ev.RemoteAddr,
			ConnectedAt: formatTime(ev.At),
		})
	case relay.EventDisconnected:
		err := s.repo.CloseSession(ctx, sessionID, formatTime(ev.At))
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("closing unknown session", "session_id", sessionID)
			return nil
		}
		return err
	default:
		return fmt.Errorf("session: unknown event type %q", ev.Type)
	}
}

// ListLimit is the page size List uses for a requested limit: a non-positive
// request selects DefaultListLimit and larger ones are capped at MaxListLimit.
func ListLimit(requested int) int {
	switch {
	case requested <= 0:
		return DefaultListLimit
	case requested > MaxListLimit:
		return MaxListLimit
	default:
		return requested
	}
}

// List returns up to ListLimit(limit) sessions, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]model.SessionItem, error) {
	return s.repo.ListSessions(ctx, ListLimit(limit))
}

func (s *Service) Get(ctx context.Context, sessionID string) (model.SessionItem, error) {
	return s.repo.GetSession(ctx, sessionID)
}
