// Package kv defines the key-value contract snapshot persistence targets.
// Backends behave like a browser's localStorage: Put overwrites, Get misses
// are not errors, and payloads are opaque byte blobs.
package kv

import "context"

// Driver identifies a concrete key-value backend implementation.
type Driver string

const (
	// DriverMemory keeps payloads in process memory (tests, ephemeral runs).
	DriverMemory Driver = "memory"
	// DriverFilesystem maps keys to files under a root directory.
	DriverFilesystem Driver = "fs"
	// DriverSQLite stores payloads in an embedded SQLite table.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores payloads in a PostgreSQL table.
	DriverPostgres Driver = "postgres"
	// DriverS3 stores payloads in an S3 / MinIO bucket.
	DriverS3 Driver = "s3"
)

// Store is the minimal persistence surface the storage manager relies on.
type Store interface {
	// Put writes the payload under key, replacing any existing value.
	Put(ctx context.Context, key string, payload []byte) error
	// Get returns the payload stored under key. The boolean reports presence;
	// a missing key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes the key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Driver identifies the backend.
	Driver() Driver
}
