// Package rawdb provides the key/value store behind the ledger and the
// world state, and the accessor functions that lay out their records.
//
// Each record type uses a distinct single-byte key prefix to avoid
// collisions.
package rawdb

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

// KeyValueReader wraps the Has and Get methods of a backing data store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete methods of a backing data store.
type KeyValueWriter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterator iterates over a database's key/value pairs in ascending key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Iteratee wraps the NewIterator method of a backing data store.
type Iteratee interface {
	NewIterator(prefix []byte) Iterator
}

// Batch is a write-only database that commits changes atomically.
type Batch interface {
	KeyValueWriter
	Len() int
	Write() error
	Reset()
}

// Database is the full database interface combining all capabilities.
type Database interface {
	KeyValueReader
	KeyValueWriter
	Iteratee
	NewBatch() Batch
	Close() error
}
