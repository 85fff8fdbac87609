package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func queryCount(s *AppServer) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queries)
}

func TestWatchQueries_Reloads(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yml"), []byte("id: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := buildServer(t)
	if _, err := s.LoadQueriesFromDir(dir); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.WatchQueries(ctx, dir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("id: b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// file không phải definition thì bỏ qua
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for queryCount(s) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("queries not reloaded: count=%d", queryCount(s))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatchQueries_MissingDir(t *testing.T) {
	s := buildServer(t)
	if err := s.WatchQueries(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestWatchedFile(t *testing.T) {
	for p, want := range map[string]bool{"a.yml": true, "b.YAML": true, "c.json": true, "d.txt": false, "e": false} {
		if got := watchedFile(p); got != want {
			t.Fatalf("watchedFile(%q) = %v", p, got)
		}
	}
}
