// Package snapshot persists payout-ledger state to the key-value store
// so a restarted daemon resumes with balances intact. Payloads are
// JSON, optionally lz4-compressed inside a small envelope that records
// the algorithm and original size.
package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/ledger"
	"github.com/dexfoundry/feesplitd/internal/storage/database"
)

var keyLatest = []byte("snap/latest")

const keySeqPrefix = "snap/seq/"

// ErrNoSnapshot is returned when the store holds no snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Record is one persisted ledger snapshot.
type Record struct {
	// Seq is the distribution sequence the snapshot was taken at.
	Seq uint64 `json:"seq"`

	// Held is the treasury balance at snapshot time.
	Held amount.Amount `json:"held"`

	State   ledger.State `json:"state"`
	SavedAt time.Time    `json:"saved_at"`
}

// envelope frames a compressed payload in the store.
type envelope struct {
	Compressor   string `json:"c"`
	OriginalSize int    `json:"size"`
	Payload      []byte `json:"data"`
}

// Store reads and writes snapshots.
type Store struct {
	db    database.DB
	compr Compressor
}

// NewStore creates a snapshot store over db. A nil compressor stores
// payloads uncompressed.
func NewStore(db database.DB, compr Compressor) *Store {
	if compr == nil {
		compr = NoCompressor{}
	}
	return &Store{db: db, compr: compr}
}

// Save persists a record as both the latest snapshot and a
// sequence-keyed one, in a single batch.
func (s *Store) Save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	value, err := s.seal(raw)
	if err != nil {
		return err
	}
	return s.db.Batch(ctx, []database.BatchOperation{
		{Type: database.BatchPut, Key: keyLatest, Value: value},
		{Type: database.BatchPut, Key: seqKey(rec.Seq), Value: value},
	})
}

// Latest loads the most recent snapshot, or ErrNoSnapshot.
func (s *Store) Latest(ctx context.Context) (Record, error) {
	return s.load(ctx, keyLatest)
}

// BySeq loads the snapshot taken at a given distribution sequence.
func (s *Store) BySeq(ctx context.Context, seq uint64) (Record, error) {
	return s.load(ctx, seqKey(seq))
}

// Seqs lists the stored snapshot sequences in ascending order.
func (s *Store) Seqs(ctx context.Context) ([]uint64, error) {
	start := []byte(keySeqPrefix)
	end := []byte(keySeqPrefix + "\xff")
	it, err := s.db.Iterator(ctx, start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var seqs []uint64
	for it.Next() {
		key := it.Key()
		if len(key) != len(keySeqPrefix)+8 {
			continue
		}
		seqs = append(seqs, binary.BigEndian.Uint64(key[len(keySeqPrefix):]))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return seqs, nil
}

func (s *Store) load(ctx context.Context, key []byte) (Record, error) {
	value, err := s.db.Read(ctx, key)
	if err != nil {
		if errors.Is(err, database.ErrKeyNotFound) {
			return Record{}, ErrNoSnapshot
		}
		return Record{}, err
	}
	raw, err := s.open(value)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return rec, nil
}

// seal compresses raw into an envelope, falling back to an uncompressed
// envelope when compression does not shrink the payload.
func (s *Store) seal(raw []byte) ([]byte, error) {
	payload, err := s.compr.Compress(raw)
	if err != nil {
		return nil, err
	}
	env := envelope{Compressor: s.compr.Name(), OriginalSize: len(raw), Payload: payload}
	if len(payload) >= len(raw) {
		env = envelope{Compressor: "none", OriginalSize: len(raw), Payload: raw}
	}
	return json.Marshal(env)
}

func (s *Store) open(value []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot envelope: %w", err)
	}
	compr, err := ForName(env.Compressor)
	if err != nil {
		return nil, err
	}
	return compr.Decompress(env.Payload, env.OriginalSize)
}

func seqKey(seq uint64) []byte {
	key := make([]byte, len(keySeqPrefix)+8)
	copy(key, keySeqPrefix)
	binary.BigEndian.PutUint64(key[len(keySeqPrefix):], seq)
	return key
}
