// Package storage provides the opaque key/value handle injected into
// stage executors. The engine never interprets stored values.
package storage

import "context"

// Store is the storage contract handed to stage executors.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
