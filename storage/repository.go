// Package storage provides the key-value storage abstraction backing the
// persistent session store.
package storage

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for session record storage. Values are
// opaque bytes; callers own serialization.
type Repository interface {
	Put(bucket, key string, value []byte) error
	Get(bucket, key string) ([]byte, error)
	// Delete removes a record. Deleting an absent record is a no-op.
	Delete(bucket, key string) error
	// Keys lists all record keys in a bucket.
	Keys(bucket string) ([]string, error)
	Close() error
}
