package recent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexfoundry/feesplitd/internal/events"
)

func TestCacheLatest(t *testing.T) {
	c, err := NewCache(3)
	require.NoError(t, err)

	for seq := uint64(1); seq <= 5; seq++ {
		c.Add(events.Distribution{Seq: seq, FeeAmount: 100})
	}

	// Oldest entries were evicted.
	assert.Equal(t, 3, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
	d, ok := c.Get(5)
	require.True(t, ok)
	assert.Equal(t, uint64(5), d.Seq)

	latest := c.Latest(2)
	require.Len(t, latest, 2)
	assert.Equal(t, uint64(5), latest[0].Seq)
	assert.Equal(t, uint64(4), latest[1].Seq)

	assert.Len(t, c.Latest(0), 3)
}
