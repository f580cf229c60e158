package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"relay-server/internal/model"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql drivers.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLRepository stores sessions in SQLite or MySQL.
type SQLRepository struct {
	db     *sql.DB
	driver string
	table  string
}

func OpenSQLRepository(ctx context.Context, driver, dsn, table string) (*SQLRepository, error) {
	if driver != DriverSQLite && driver != DriverMySQL {
		return nil, fmt.Errorf("session store: unsupported driver %q", driver)
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("session store: invalid table name %q", table)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("session store: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store: ping %s: %w", driver, err)
	}

	repo := &SQLRepository{db: db, driver: driver, table: table}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	var stmts []string
	switch r.driver {
	case DriverSQLite:
		stmts = []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				session_id TEXT PRIMARY KEY,
				node_id TEXT NOT NULL,
				client_id TEXT NOT NULL,
				remote_addr TEXT NOT NULL DEFAULT '',
				connected_at TEXT NOT NULL,
				disconnected_at TEXT NOT NULL DEFAULT ''
			)`, r.table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_connected_at ON %s (connected_at)`, r.table, r.table),
		}
	case DriverMySQL:
		stmts = []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				session_id VARCHAR(191) PRIMARY KEY,
				node_id VARCHAR(128) NOT NULL,
				client_id VARCHAR(64) NOT NULL,
				remote_addr VARCHAR(255) NOT NULL DEFAULT '',
				connected_at VARCHAR(40) NOT NULL,
				disconnected_at VARCHAR(40) NOT NULL DEFAULT '',
				INDEX idx_connected_at (connected_at)
			)`, r.table),
		}
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("session store: migrate: %w", err)
		}
	}
	return nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) CreateSession(ctx context.Context, item model.SessionItem) error {
	query := fmt.Sprintf(`REPLACE INTO %s
		(session_id, node_id, client_id, remote_addr, connected_at, disconnected_at)
		VALUES (?, ?, ?, ?, ?, ?)`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		item.SessionID, item.NodeID, item.ClientID, item.RemoteAddr, item.ConnectedAt, item.DisconnectedAt)
	if err != nil {
		return fmt.Errorf("session store: insert %s: %w", item.SessionID, err)
	}
	return nil
}

func (r *SQLRepository) CloseSession(ctx context.Context, sessionID, disconnectedAt string) error {
	query := fmt.Sprintf(`UPDATE %s SET disconnected_at = ? WHERE session_id = ?`, r.table)
	res, err := r.db.ExecContext(ctx, query, disconnectedAt, sessionID)
	if err != nil {
		return fmt.Errorf("session store: close %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session store: close %s: %w", sessionID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) GetSession(ctx context.Context, sessionID string) (model.SessionItem, error) {
	query := fmt.Sprintf(`SELECT session_id, node_id, client_id, remote_addr, connected_at, disconnected_at
		FROM %s WHERE session_id = ?`, r.table)

	var item model.SessionItem
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&item.SessionID, &item.NodeID, &item.ClientID, &item.RemoteAddr, &item.ConnectedAt, &item.DisconnectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionItem{}, ErrNotFound
	}
	if err != nil {
		return model.SessionItem{}, fmt.Errorf("session store: get %s: %w", sessionID, err)
	}
	return item, nil
}

func (r *SQLRepository) ListSessions(ctx context.Context, limit int) ([]model.SessionItem, error) {
	query := fmt.Sprintf(`SELECT session_id, node_id, client_id, remote_addr, connected_at, disconnected_at
		FROM %s ORDER BY connected_at DESC LIMIT ?`, r.table)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("session store: list: %w", err)
	}
	defer rows.Close()

	items := make([]model.SessionItem, 0)
	for rows.Next() {
		var item model.SessionItem
		if err := rows.Scan(&item.SessionID, &item.NodeID, &item.ClientID, &item.RemoteAddr, &item.ConnectedAt, &item.DisconnectedAt); err != nil {
			return nil, fmt.Errorf("session store: scan: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
