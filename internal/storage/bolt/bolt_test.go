package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shaunagostinho/geotrack/internal/storage"
)

func TestGetMissingKey(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	value, found, err := store.Get(context.Background(), storage.KeyEndpointURL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found || value != "" {
		t.Fatalf("expected absent key, got %q (found=%v)", value, found)
	}
}

func TestSetSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "geotrack.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	url := "https://tracker.example.com/location"
	if err := store.Set(context.Background(), storage.KeyEndpointURL, url); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	value, found, err := store.Get(context.Background(), storage.KeyEndpointURL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found || value != url {
		t.Fatalf("expected %q, got %q (found=%v)", url, value, found)
	}
}

func TestCancelledContext(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Set(ctx, "k", "v"); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "geotrack.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
