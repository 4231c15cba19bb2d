package storage

import (
	"context"
	"os"
)

// KeyEndpointURL is the key under which the endpoint override is kept.
const KeyEndpointURL = "tracker_server_url"

// Store is a small persistent key-value store scoped to this device.
// Values survive restarts and never expire.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
