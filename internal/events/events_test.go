package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherFansOut(t *testing.T) {
	pub := NewPublisher()

	// Publishing with no hooks must be a no-op, not a panic.
	pub.PublishDistribution(Distribution{Seq: 1})
	assert.False(t, pub.HasSubscribers())

	got := make(chan Distribution, 1)
	pub.SetHooks(&Hooks{
		OnDistribution: func(d Distribution) { got <- d },
	})
	assert.True(t, pub.HasSubscribers())

	pub.PublishDistribution(Distribution{Seq: 7, FeeAmount: 1000})

	select {
	case d := <-got:
		assert.Equal(t, uint64(7), d.Seq)
		assert.Equal(t, uint64(1000), uint64(d.FeeAmount))
	case <-time.After(time.Second):
		t.Fatal("distribution hook was not called")
	}
}

func TestPublisherSkipsNilHooks(t *testing.T) {
	pub := NewPublisher()
	burns := make(chan BurnRecord, 1)
	pub.SetHooks(&Hooks{
		OnBurn: func(b BurnRecord) { burns <- b },
	})

	// Hooks other than OnBurn are nil and must be skipped.
	pub.PublishDistribution(Distribution{Seq: 1})
	pub.PublishClaimPaid(ClaimPaid{Wallet: "w"})
	pub.PublishBurn(BurnRecord{Released: 50})

	select {
	case b := <-burns:
		require.Equal(t, uint64(50), uint64(b.Released))
	case <-time.After(time.Second):
		t.Fatal("burn hook was not called")
	}
}
