// Package database defines the key-value store interface backing the
// snapshot store.
package database

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("database is closed")

	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")
)

// DB is the minimal key-value contract the snapshot store needs.
type DB interface {
	Read(ctx context.Context, key []byte) ([]byte, error)
	Write(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error

	// Batch applies every operation atomically.
	Batch(ctx context.Context, ops []BatchOperation) error

	// Iterator traverses keys in [start, end).
	Iterator(ctx context.Context, start, end []byte) (Iterator, error)

	Close() error
}

// Iterator traverses database entries in key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// BatchOperation is a single put or delete inside a batch.
type BatchOperation struct {
	Type  BatchOpType
	Key   []byte
	Value []byte
}

type BatchOpType int

const (
	BatchPut BatchOpType = iota
	BatchDelete
)
