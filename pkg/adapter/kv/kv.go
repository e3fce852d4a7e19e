package kv

import (
	"context"
)

// Store is a string key-value persistence layer. It plays the role the
// browser's localStorage plays for the web page: a handful of fixed keys each
// holding a JSON document.
type Store interface {
	// Get returns the value for key. found is false when the key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by stores holding connections or files
type Closer interface {
	Close() error
}
