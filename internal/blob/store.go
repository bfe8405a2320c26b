// Package blob stores archive payloads as opaque objects. The payloads are
// already encrypted envelopes; this layer adds durability, not secrecy.
package blob

import "context"

// Store is a minimal object store for archive payloads.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
