package postgres

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// openStore routes the postgres store onto an embedded SQLite file, which
// accepts the same $1 placeholders and upsert syntax, so the query paths run
// without a live server.
func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.db")
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return sql.Open("sqlite", path)
	})
	t.Cleanup(restore)

	s, err := New(context.Background(), "postgres://ignored")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "plancore:store", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "plancore:store", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Put upsert: %v", err)
	}
	got, ok, err := s.Get(ctx, "plancore:store")
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("Get = %q", got)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	existed, err := s.Delete(ctx, "k")
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v", existed, err)
	}
	if existed, _ := s.Delete(ctx, "k"); existed {
		t.Fatal("second delete reported existence")
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("key survived delete")
	}
}
