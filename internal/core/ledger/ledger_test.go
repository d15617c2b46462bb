package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
)

func TestCreditAndDebitPlatform(t *testing.T) {
	l := New()

	require.NoError(t, l.CreditPlatform("wPlat", 360))
	require.NoError(t, l.CreditPlatform("wPlat", 40))
	assert.Equal(t, amount.Amount(400), l.PlatformBalance("wPlat"))
	assert.Equal(t, amount.Amount(400), l.TotalOwed())

	paid, err := l.DebitPlatform("wPlat")
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(400), paid)
	assert.True(t, l.PlatformBalance("wPlat").IsZero())
	assert.True(t, l.TotalOwed().IsZero())

	_, err = l.DebitPlatform("wPlat")
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestCreditPlatformNullWallet(t *testing.T) {
	l := New()
	assert.ErrorIs(t, l.CreditPlatform("", 10), ErrNullWallet)
	assert.True(t, l.TotalOwed().IsZero())
}

func TestRewardLifecycle(t *testing.T) {
	l := New()

	require.NoError(t, l.CreditReward(7, 270))
	require.NoError(t, l.CreditReward(7, 30))

	acct := l.RewardInfo(7)
	assert.Equal(t, amount.Amount(300), acct.Accumulated)
	assert.True(t, acct.Paid.IsZero())
	assert.Equal(t, amount.Amount(300), l.TotalOwed())

	prevPaid, err := l.DebitReward(7, 100)
	require.NoError(t, err)
	assert.True(t, prevPaid.IsZero())

	prevPaid, err = l.DebitReward(7, 150)
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(100), prevPaid)
	assert.Equal(t, amount.Amount(50), l.TotalOwed())

	// Cumulative paid may never exceed accumulated.
	_, err = l.DebitReward(7, 51)
	assert.ErrorIs(t, err, ErrOverpay)
	assert.Equal(t, amount.Amount(50), l.TotalOwed())
}

func TestDebitRewardUnknownEpoch(t *testing.T) {
	l := New()
	_, err := l.DebitReward(99, 1)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestRestoreReward(t *testing.T) {
	l := New()
	require.NoError(t, l.CreditReward(3, 200))

	_, err := l.DebitReward(3, 120)
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(80), l.TotalOwed())

	require.NoError(t, l.RestoreReward(3, 120))
	acct := l.RewardInfo(3)
	assert.True(t, acct.Paid.IsZero())
	assert.Equal(t, amount.Amount(200), l.TotalOwed())

	// Restoring more than was debited is a logic error.
	assert.Error(t, l.RestoreReward(3, 1))
}

func TestCreditRebates(t *testing.T) {
	l := New()

	wallets := []string{"wA", "wB"}
	shares, distributed, err := l.CreditRebates(wallets, []uint32{6000, 4000}, 270)
	require.NoError(t, err)
	assert.Equal(t, []amount.Amount{162, 108}, shares)
	assert.Equal(t, amount.Amount(270), distributed)
	assert.Equal(t, amount.Amount(162), l.RebateBalance("wA"))
	assert.Equal(t, amount.Amount(108), l.RebateBalance("wB"))
	assert.Equal(t, amount.Amount(270), l.TotalOwed())
}

func TestCreditRebatesShortfallStaysUnowed(t *testing.T) {
	l := New()

	// Shares under 100%: the rounding remainder and the unallocated
	// portion never become owed.
	_, distributed, err := l.CreditRebates([]string{"wA", "wB"}, []uint32{2500, 2500}, 100)
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(50), distributed)
	assert.Equal(t, amount.Amount(50), l.TotalOwed())
}

func TestCreditRebatesDuplicateWallet(t *testing.T) {
	l := New()

	_, distributed, err := l.CreditRebates([]string{"wA", "wA"}, []uint32{5000, 5000}, 100)
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(100), distributed)
	assert.Equal(t, amount.Amount(100), l.RebateBalance("wA"))
}

func TestCreditRebatesValidation(t *testing.T) {
	l := New()

	_, _, err := l.CreditRebates([]string{"wA"}, []uint32{5000, 5000}, 100)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, _, err = l.CreditRebates([]string{"wA", ""}, []uint32{5000, 5000}, 100)
	assert.ErrorIs(t, err, ErrNullWallet)

	assert.True(t, l.TotalOwed().IsZero())
	assert.True(t, l.RebateBalance("wA").IsZero())
}

func TestDebitAndRestoreRebate(t *testing.T) {
	l := New()
	_, _, err := l.CreditRebates([]string{"wA"}, []uint32{10000}, 90)
	require.NoError(t, err)

	bal, err := l.DebitRebate("wA")
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(90), bal)
	assert.True(t, l.TotalOwed().IsZero())

	require.NoError(t, l.RestoreRebate("wA", bal))
	assert.Equal(t, amount.Amount(90), l.RebateBalance("wA"))
	assert.Equal(t, amount.Amount(90), l.TotalOwed())
}

func TestForfeitRewardEpoch(t *testing.T) {
	l := New()
	require.NoError(t, l.CreditReward(5, 500))
	_, err := l.DebitReward(5, 200)
	require.NoError(t, err)

	// Only the unpaid remainder is forfeited.
	forfeited, err := l.ForfeitRewardEpoch(5)
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(300), forfeited)
	assert.True(t, l.TotalOwed().IsZero())

	acct := l.RewardInfo(5)
	assert.Equal(t, amount.Amount(200), acct.Accumulated)
	assert.Equal(t, amount.Amount(200), acct.Paid)

	// Idempotent on an already forfeited or unknown epoch.
	forfeited, err = l.ForfeitRewardEpoch(5)
	require.NoError(t, err)
	assert.True(t, forfeited.IsZero())

	forfeited, err = l.ForfeitRewardEpoch(42)
	require.NoError(t, err)
	assert.True(t, forfeited.IsZero())
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := New()
	require.NoError(t, l.CreditReward(1, 300))
	_, err := l.DebitReward(1, 100)
	require.NoError(t, err)
	require.NoError(t, l.CreditPlatform("wPlat", 360))
	_, _, err = l.CreditRebates([]string{"wA", "wB"}, []uint32{6000, 4000}, 270)
	require.NoError(t, err)

	st := l.Snapshot()

	restored := New()
	require.NoError(t, restored.Restore(st))
	assert.Equal(t, l.TotalOwed(), restored.TotalOwed())
	assert.Equal(t, l.RewardInfo(1), restored.RewardInfo(1))
	assert.Equal(t, l.RebateBalance("wA"), restored.RebateBalance("wA"))
	assert.Equal(t, l.PlatformBalance("wPlat"), restored.PlatformBalance("wPlat"))

	// Snapshot is a deep copy: later mutations do not leak into it.
	require.NoError(t, l.CreditReward(1, 50))
	assert.Equal(t, amount.Amount(300), st.Rewards[1].Accumulated)
}

func TestRestoreRejectsInconsistentState(t *testing.T) {
	l := New()

	err := l.Restore(State{
		Rebates:   map[string]amount.Amount{"wA": 100},
		TotalOwed: 50,
	})
	assert.Error(t, err)

	err = l.Restore(State{
		Rewards: map[uint64]RewardAccount{1: {Accumulated: 10, Paid: 20}},
	})
	assert.Error(t, err)
}
