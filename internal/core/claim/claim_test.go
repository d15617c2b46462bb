package claim

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/engine"
	"github.com/dexfoundry/feesplitd/internal/core/ledger"
	"github.com/dexfoundry/feesplitd/internal/core/rates"
	"github.com/dexfoundry/feesplitd/internal/events"
)

type fakeTransferor struct {
	err   error
	calls []transfer

	// onTransfer, when set, runs inside Transfer to simulate a wallet
	// calling back into the daemon.
	onTransfer func()
}

type transfer struct {
	wallet string
	amt    amount.Amount
}

func (f *fakeTransferor) Transfer(_ context.Context, wallet string, amt amount.Amount) error {
	f.calls = append(f.calls, transfer{wallet, amt})
	if f.onTransfer != nil {
		f.onTransfer()
	}
	return f.err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newHandlers(t *testing.T, held amount.Amount) (*Handlers, *engine.Engine, *fakeTransferor) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache, err := rates.NewCache(clock, nil, rates.RateSet{
		Epoch: 1, BurnBps: 4000, RewardBps: 3000, RebateBps: 3000,
		Expiry: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	eng := engine.New(engine.NewGuard(), ledger.New(), cache, engine.NewTreasury(held), events.NewPublisher(), clock, "USDQ", testLogger())
	tr := &fakeTransferor{}
	return NewHandlers(eng, tr, events.NewPublisher(), clock, testLogger()), eng, tr
}

func TestClaimStakerReward(t *testing.T) {
	h, eng, tr := newHandlers(t, 1000)
	require.NoError(t, eng.Ledger().CreditReward(7, 300))

	// 50% of 300.
	paid, err := h.ClaimStakerReward(context.Background(), 7, "wStaker", Precision/2)
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(150), paid)
	assert.Equal(t, []transfer{{"wStaker", 150}}, tr.calls)
	assert.Equal(t, amount.Amount(850), eng.Treasury().Held())
	assert.Equal(t, amount.Amount(150), eng.Ledger().TotalOwed())

	// A second 100% claim for the same epoch overpays and is rejected.
	_, err = h.ClaimStakerReward(context.Background(), 7, "wStaker", Precision)
	assert.ErrorIs(t, err, ledger.ErrOverpay)

	// The remainder can still be claimed exactly.
	paid, err = h.ClaimStakerReward(context.Background(), 7, "wStaker", Precision/2)
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(150), paid)
	assert.Equal(t, amount.Amount(300), eng.Ledger().RewardInfo(7).Paid)
}

func TestClaimStakerRewardValidation(t *testing.T) {
	h, _, _ := newHandlers(t, 1000)
	ctx := context.Background()

	_, err := h.ClaimStakerReward(ctx, 1, "", Precision)
	assert.ErrorIs(t, err, ledger.ErrNullWallet)

	_, err = h.ClaimStakerReward(ctx, 1, "wStaker", 0)
	assert.ErrorIs(t, err, ErrBadPercentage)

	_, err = h.ClaimStakerReward(ctx, 1, "wStaker", Precision+1)
	assert.ErrorIs(t, err, ErrBadPercentage)

	// Empty epoch pot.
	_, err = h.ClaimStakerReward(ctx, 1, "wStaker", Precision)
	assert.ErrorIs(t, err, ledger.ErrNothingToClaim)
}

func TestClaimRebateAndPlatform(t *testing.T) {
	h, eng, tr := newHandlers(t, 1000)
	_, _, err := eng.Ledger().CreditRebates([]string{"wA"}, []uint32{10000}, 90)
	require.NoError(t, err)
	require.NoError(t, eng.Ledger().CreditPlatform("wPlat", 60))

	paid, err := h.ClaimRebate(context.Background(), "wA")
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(90), paid)

	paid, err = h.ClaimPlatformFee(context.Background(), "wPlat")
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(60), paid)

	assert.Equal(t, []transfer{{"wA", 90}, {"wPlat", 60}}, tr.calls)
	assert.True(t, eng.Ledger().TotalOwed().IsZero())
	assert.Equal(t, amount.Amount(850), eng.Treasury().Held())

	// Balances are zeroed by the claim.
	_, err = h.ClaimRebate(context.Background(), "wA")
	assert.ErrorIs(t, err, ledger.ErrNothingToClaim)
	_, err = h.ClaimPlatformFee(context.Background(), "wPlat")
	assert.ErrorIs(t, err, ledger.ErrNothingToClaim)
}

func TestClaimTransferFailureRollsBack(t *testing.T) {
	h, eng, tr := newHandlers(t, 1000)
	require.NoError(t, eng.Ledger().CreditReward(7, 300))
	_, _, err := eng.Ledger().CreditRebates([]string{"wA"}, []uint32{10000}, 90)
	require.NoError(t, err)

	tr.err = errors.New("wallet rejected transfer")

	_, err = h.ClaimStakerReward(context.Background(), 7, "wStaker", Precision)
	require.Error(t, err)
	_, err = h.ClaimRebate(context.Background(), "wA")
	require.Error(t, err)

	// No partial debit survives.
	assert.Equal(t, amount.Amount(1000), eng.Treasury().Held())
	assert.Equal(t, amount.Amount(390), eng.Ledger().TotalOwed())
	assert.True(t, eng.Ledger().RewardInfo(7).Paid.IsZero())
	assert.Equal(t, amount.Amount(90), eng.Ledger().RebateBalance("wA"))
}

func TestClaimReentrantCallbackFails(t *testing.T) {
	h, eng, tr := newHandlers(t, 1000)
	require.NoError(t, eng.Ledger().CreditReward(7, 300))
	_, _, err := eng.Ledger().CreditRebates([]string{"wA"}, []uint32{10000}, 90)
	require.NoError(t, err)

	var nestedErr error
	tr.onTransfer = func() {
		// The wallet's transfer callback tries to claim again.
		_, nestedErr = h.ClaimRebate(context.Background(), "wA")
	}

	paid, err := h.ClaimStakerReward(context.Background(), 7, "wStaker", Precision)
	require.NoError(t, err)
	assert.Equal(t, amount.Amount(300), paid)

	// The nested claim was rejected; the original debit is the only
	// state change.
	assert.ErrorIs(t, nestedErr, engine.ErrReentrant)
	assert.Equal(t, amount.Amount(90), eng.Ledger().RebateBalance("wA"))
	assert.Equal(t, amount.Amount(700), eng.Treasury().Held())
}

func TestClaimNotConfigured(t *testing.T) {
	h, eng, _ := newHandlers(t, 1000)
	require.NoError(t, eng.Ledger().CreditPlatform("wPlat", 60))
	h.SetTransferor(nil)

	_, err := h.ClaimPlatformFee(context.Background(), "wPlat")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, amount.Amount(60), eng.Ledger().PlatformBalance("wPlat"))
}
