// Package pebbledb backs the database interface with cockroachdb/pebble.
package pebbledb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/dexfoundry/feesplitd/internal/storage/database"
)

// DB wraps a pebble instance behind the database.DB interface.
type DB struct {
	db *pebble.DB
}

// Open opens or creates a pebble store at path.
func Open(path string) (*DB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

// New wraps an already opened pebble instance.
func New(db *pebble.DB) *DB {
	return &DB{db: db}
}

func (p *DB) Read(_ context.Context, key []byte) ([]byte, error) {
	if p.db == nil {
		return nil, database.ErrClosed
	}
	val, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, database.ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (p *DB) Write(_ context.Context, key, value []byte) error {
	if p.db == nil {
		return database.ErrClosed
	}
	return p.db.Set(key, value, pebble.Sync)
}

func (p *DB) Delete(_ context.Context, key []byte) error {
	if p.db == nil {
		return database.ErrClosed
	}
	return p.db.Delete(key, pebble.Sync)
}

func (p *DB) Batch(_ context.Context, ops []database.BatchOperation) error {
	if p.db == nil {
		return database.ErrClosed
	}
	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return err
			}
		case database.BatchDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}
	return batch.Commit(pebble.Sync)
}

func (p *DB) Iterator(_ context.Context, start, end []byte) (database.Iterator, error) {
	if p.db == nil {
		return nil, database.ErrClosed
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, err
	}
	return &iterator{iter: iter, start: start, end: end}, nil
}

func (p *DB) Close() error {
	if p.db == nil {
		return database.ErrClosed
	}
	err := p.db.Close()
	p.db = nil
	return err
}

type iterator struct {
	iter       *pebble.Iterator
	start, end []byte
	current    struct {
		key, value []byte
	}
}

func (it *iterator) Next() bool {
	if it.current.key == nil {
		if it.start == nil {
			it.iter.First()
		} else {
			it.iter.SeekGE(it.start)
		}
	} else {
		it.iter.Next()
	}
	if !it.iter.Valid() {
		return false
	}

	key := it.iter.Key()
	if it.end != nil && bytes.Compare(key, it.end) >= 0 {
		return false
	}

	it.current.key = append([]byte(nil), key...)
	it.current.value = append([]byte(nil), it.iter.Value()...)
	return true
}

func (it *iterator) Key() []byte   { return it.current.key }
func (it *iterator) Value() []byte { return it.current.value }

func (it *iterator) Error() error { return it.iter.Error() }

func (it *iterator) Close() error { return it.iter.Close() }
