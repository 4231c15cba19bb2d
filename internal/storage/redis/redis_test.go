package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/shaunagostinho/geotrack/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := Open(config.RedisConfig{
		Addr:        mr.Addr(),
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	return store, mr
}

func TestStore_SetGet(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	url := "https://tracker.example.com/location"

	if err := store.Set(ctx, storage.KeyEndpointURL, url); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, found, err := store.Get(ctx, storage.KeyEndpointURL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || value != url {
		t.Errorf("Expected %q, got %q (found=%v)", url, value, found)
	}

	// Stored under the prefixed key with no TTL
	if got, _ := mr.Get(keyPrefix + storage.KeyEndpointURL); got != url {
		t.Errorf("Expected raw key to hold %q, got %q", url, got)
	}
	if ttl := mr.TTL(keyPrefix + storage.KeyEndpointURL); ttl != 0 {
		t.Errorf("Expected no TTL, got %v", ttl)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	value, found, err := store.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found || value != "" {
		t.Errorf("Expected absent key, got %q (found=%v)", value, found)
	}
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := Open(config.RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatal("Expected error connecting to a closed server")
	}
}
