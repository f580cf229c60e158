package session

import (
	"context"
	"errors"
	"sort"

	"relay-server/internal/database"
	"relay-server/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("session repository: not found")

type Repository interface {
	CreateSession(ctx context.Context, item model.SessionItem) error
	// CloseSession stamps disconnectedAt on an open session. It returns
	// ErrNotFound when no such session exists.
	CloseSession(ctx context.Context, sessionID, disconnectedAt string) error
	GetSession(ctx context.Context, sessionID string) (model.SessionItem, error)
	// ListSessions returns up to limit sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]model.SessionItem, error)
}

type DynamoRepository struct {
	db    *database.Database
	table string
}

func NewDynamoRepository(db *database.Database, table string) *DynamoRepository {
	if table == "" {
		table = model.SessionsTable
	}
	return &DynamoRepository{db: db, table: table}
}

func sessionKey(sessionID string) database.Key {
	return database.Key{
		"sessionId": database.AttrString(sessionID),
	}
}

// EnsureTable creates the sessions table when it is missing.
func (r *DynamoRepository) EnsureTable(ctx context.Context) error {
	return r.db.Client.EnsureTable(ctx, r.table, "sessionId")
}

func (r *DynamoRepository) CreateSession(ctx context.Context, item model.SessionItem) error {
	return r.db.Client.PutItem(ctx, r.table, item)
}

func (r *DynamoRepository) CloseSession(ctx context.Context, sessionID, disconnectedAt string) error {
	err := r.db.Client.UpdateItem(ctx, r.table, database.Update{
		Key:        sessionKey(sessionID),
		Expression: "SET #disconnectedAt = :disconnectedAt",
		Condition:  "attribute_exists(sessionId)",
		Values: map[string]types.AttributeValue{
			":disconnectedAt": database.AttrString(disconnectedAt),
		},
		Names: map[string]string{
			"#disconnectedAt": "disconnectedAt",
		},
	}, nil)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *DynamoRepository) GetSession(ctx context.Context, sessionID string) (model.SessionItem, error) {
	var item model.SessionItem
	if err := r.db.Client.GetItem(ctx, r.table, sessionKey(sessionID), &item); err != nil {
		if isNotFound(err) {
			return model.SessionItem{}, ErrNotFound
		}
		return model.SessionItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) ListSessions(ctx context.Context, limit int) ([]model.SessionItem, error) {
	raw, err := r.db.Client.ScanAll(ctx, r.table)
	if err != nil {
		return nil, err
	}

	var items []model.SessionItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].ConnectedAt > items[j].ConnectedAt
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrItemNotFound)
}
