package snapshot

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/ledger"
	"github.com/dexfoundry/feesplitd/internal/storage/database"
)

// memDB is an in-memory database.DB for tests.
type memDB struct {
	data map[string][]byte
}

func newMemDB() *memDB { return &memDB{data: make(map[string][]byte)} }

func (m *memDB) Read(_ context.Context, key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, database.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memDB) Write(_ context.Context, key, value []byte) error {
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *memDB) Delete(_ context.Context, key []byte) error {
	delete(m.data, string(key))
	return nil
}

func (m *memDB) Batch(_ context.Context, ops []database.BatchOperation) error {
	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			m.data[string(op.Key)] = append([]byte(nil), op.Value...)
		case database.BatchDelete:
			delete(m.data, string(op.Key))
		}
	}
	return nil
}

func (m *memDB) Iterator(_ context.Context, start, end []byte) (database.Iterator, error) {
	var keys []string
	for k := range m.data {
		if start != nil && strings.Compare(k, string(start)) < 0 {
			continue
		}
		if end != nil && strings.Compare(k, string(end)) >= 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &memIter{db: m, keys: keys, pos: -1}, nil
}

func (m *memDB) Close() error { return nil }

type memIter struct {
	db   *memDB
	keys []string
	pos  int
}

func (it *memIter) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *memIter) Key() []byte   { return []byte(it.keys[it.pos]) }
func (it *memIter) Value() []byte { return it.db.data[it.keys[it.pos]] }
func (it *memIter) Error() error  { return nil }
func (it *memIter) Close() error  { return nil }

func sampleRecord(seq uint64) Record {
	l := ledger.New()
	_ = l.CreditPlatform("wPlat", 100)
	_ = l.CreditReward(1, 270)
	_, _, _ = l.CreditRebates([]string{"wA", "wB"}, []uint32{6000, 4000}, 270)
	return Record{
		Seq:     seq,
		Held:    1000,
		State:   l.Snapshot(),
		SavedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for _, compr := range []Compressor{nil, NoCompressor{}, LZ4Compressor{}} {
		store := NewStore(newMemDB(), compr)
		ctx := context.Background()

		_, err := store.Latest(ctx)
		assert.ErrorIs(t, err, ErrNoSnapshot)

		want := sampleRecord(5)
		require.NoError(t, store.Save(ctx, want))

		got, err := store.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		got, err = store.BySeq(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		// Restoring the snapshot reproduces the ledger.
		restored := ledger.New()
		require.NoError(t, restored.Restore(got.State))
		assert.Equal(t, amount.Amount(640), restored.TotalOwed())
	}
}

func TestStoreSeqs(t *testing.T) {
	store := NewStore(newMemDB(), LZ4Compressor{})
	ctx := context.Background()

	for _, seq := range []uint64{9, 2, 300} {
		require.NoError(t, store.Save(ctx, sampleRecord(seq)))
	}
	seqs, err := store.Seqs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 9, 300}, seqs)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), latest.Seq)
}

func TestLZ4RoundTrip(t *testing.T) {
	c := LZ4Compressor{}
	data := bytes.Repeat([]byte("feesplitd snapshot payload "), 100)

	compressed, err := c.Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))

	out, err := c.Decompress(compressed, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
