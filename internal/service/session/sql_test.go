package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"relay-server/internal/model"
)

func openTestSQLite(t *testing.T) *SQLRepository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "sessions.db")
	repo, err := OpenSQLRepository(context.Background(), DriverSQLite, dsn, "relay_sessions")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLRepositoryRoundTrip(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()

	sessions := []model.SessionItem{
		{SessionID: "n#1", NodeID: "n", ClientID: "1", ConnectedAt: "2024-01-01T00:00:01.000Z"},
		{SessionID: "n#2", NodeID: "n", ClientID: "2", RemoteAddr: "10.0.0.1", ConnectedAt: "2024-01-01T00:00:02.000Z"},
		{SessionID: "n#3", NodeID: "n", ClientID: "3", ConnectedAt: "2024-01-01T00:00:03.000Z"},
	}
	for _, s := range sessions {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	got, err := repo.GetSession(ctx, "n#2")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != sessions[1] {
		t.Fatalf("expected %+v, got %+v", sessions[1], got)
	}

	if err := repo.CloseSession(ctx, "n#2", "2024-01-01T00:01:00.000Z"); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}
	got, _ = repo.GetSession(ctx, "n#2")
	if got.Open() {
		t.Fatal("session should be closed")
	}

	list, err := repo.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "n#3" || list[1].SessionID != "n#2" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestSQLRepositoryNotFound(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()

	if _, err := repo.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.CloseSession(ctx, "missing", "2024-01-01T00:00:00.000Z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLRepositoryRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "x.db")

	if _, err := OpenSQLRepository(ctx, "postgres", dsn, "sessions"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if _, err := OpenSQLRepository(ctx, DriverSQLite, dsn, "sessions; DROP TABLE x"); err == nil {
		t.Fatal("expected error for invalid table name")
	}
}

func TestSQLRepositoryReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "sessions.db")

	repo, err := OpenSQLRepository(ctx, DriverSQLite, dsn, "relay_sessions")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateSession(ctx, model.SessionItem{SessionID: "n#1", NodeID: "n", ClientID: "1", ConnectedAt: "x"}); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	repo, err = OpenSQLRepository(ctx, DriverSQLite, dsn, "relay_sessions")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer repo.Close()
	if _, err := repo.GetSession(ctx, "n#1"); err != nil {
		t.Fatalf("session lost after reopen: %v", err)
	}
}
