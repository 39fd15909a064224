package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plancore.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "plancore:store", []byte(`{"version":"1.0.0"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "plancore:store", []byte("v2")); err != nil {
		t.Fatalf("Put upsert: %v", err)
	}
	got, ok, err := s.Get(ctx, "plancore:store")
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	if string(got) != "v2" {
		t.Fatalf("Get = %q, want v2", got)
	}

	existed, err := s.Delete(ctx, "plancore:store")
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v", existed, err)
	}
	if _, ok, _ := s.Get(ctx, "plancore:store"); ok {
		t.Fatal("key survived delete")
	}
	if existed, _ := s.Delete(ctx, "plancore:store"); existed {
		t.Fatal("second delete reported existence")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plancore.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Put(ctx, "k", []byte("durable")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.Get(ctx, "k")
	if err != nil || !ok || string(got) != "durable" {
		t.Fatalf("Get after reopen = %q, ok=%v, err=%v", got, ok, err)
	}
}
