// Package storage provides the remote object store adapter: opaque
// path-like keys mapped to compressed blobs. Two implementations exist,
// an S3-compatible bucket for production (Cloudflare R2) and an embedded
// Badger database for development and tests.
package storage

import "context"

// ObjectStore is the boundary to durable blob storage. Get reports a
// missing key with errors.ErrNotFound; all other failures surface as
// ErrStorageRead/ErrStorageWrite wrapped around the adapter error.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
