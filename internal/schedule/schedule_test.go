package schedule

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/burn"
	"github.com/dexfoundry/feesplitd/internal/core/engine"
	"github.com/dexfoundry/feesplitd/internal/core/ledger"
	"github.com/dexfoundry/feesplitd/internal/core/rates"
	"github.com/dexfoundry/feesplitd/internal/events"
)

type sweepOracle struct {
	rates   rates.RateSet
	forfeit map[uint64]bool
	asked   []uint64
}

func (o *sweepOracle) LatestRates(context.Context) (rates.RateSet, error) {
	return o.rates, nil
}

func (o *sweepOracle) ShouldForfeitEpoch(_ context.Context, epoch uint64) (bool, error) {
	o.asked = append(o.asked, epoch)
	return o.forfeit[epoch], nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSweepForfeitures(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	oracle := &sweepOracle{forfeit: map[uint64]bool{3: true}}

	cache, err := rates.NewCache(clock, oracle, rates.RateSet{
		Epoch: 5, BurnBps: 4000, RewardBps: 3000, RebateBps: 3000,
		Expiry: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	eng := engine.New(engine.NewGuard(), ledger.New(), cache, engine.NewTreasury(1000), events.NewPublisher(), clock, "USDQ", testLogger())
	require.NoError(t, eng.Ledger().CreditReward(3, 100))
	require.NoError(t, eng.Ledger().CreditReward(4, 200))
	require.NoError(t, eng.Ledger().CreditReward(5, 300))

	s := New(NewConfig(), eng, cache, nil, nil, testLogger())
	s.sweepForfeitures(context.Background())

	// Epoch 3 reclaimed, epoch 4 kept, current epoch 5 never asked.
	assert.True(t, eng.Ledger().RewardInfo(3).Unpaid().IsZero())
	assert.Equal(t, amount.Amount(200), eng.Ledger().RewardInfo(4).Unpaid())
	assert.Equal(t, amount.Amount(300), eng.Ledger().RewardInfo(5).Unpaid())
	for _, asked := range oracle.asked {
		assert.Less(t, asked, uint64(5))
	}
}

func TestAttemptBurnToleratesGateRejections(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache, err := rates.NewCache(clock, nil, rates.RateSet{
		Epoch: 1, BurnBps: 4000, RewardBps: 3000, RebateBps: 3000,
		Expiry: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	eng := engine.New(engine.NewGuard(), ledger.New(), cache, engine.NewTreasury(0), events.NewPublisher(), clock, "USDQ", testLogger())
	ctrl := burn.NewController(burn.Config{MinInterval: time.Hour}, eng, nil, nil, nil, events.NewPublisher(), clock, testLogger())

	s := New(NewConfig(), eng, cache, ctrl, nil, testLogger())
	// Nothing configured and nothing to burn; the job must not error
	// out of the scheduler.
	s.attemptBurn(context.Background())
}

func TestStartRejectsBadExpression(t *testing.T) {
	cfg := NewConfig()
	cfg.Snapshot = "not a cron expr"
	s := New(cfg, nil, nil, nil, nil, testLogger())
	assert.Error(t, s.Start(context.Background()))
}
