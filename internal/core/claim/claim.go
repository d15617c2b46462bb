// Package claim implements the payout entry points: staker reward
// claims, rebate claims and platform-fee claims. Each debits the ledger
// strictly before the external transfer and rolls the debit back if the
// transfer fails, so a reentrant callback from the transfer can never
// double-claim.
package claim

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/engine"
	"github.com/dexfoundry/feesplitd/internal/core/ledger"
	"github.com/dexfoundry/feesplitd/internal/events"
)

// Precision is the denominator of staker percentages: a percentage of
// Precision is 100% of the epoch's accumulated reward.
const Precision uint64 = 1_000_000_000_000_000_000

var (
	// ErrBadPercentage is returned when a staker percentage is zero or
	// above Precision.
	ErrBadPercentage = errors.New("percentage out of range")

	// ErrNotConfigured is returned when no transferor is wired.
	ErrNotConfigured = errors.New("transferor not configured")
)

// Transferor moves claimed funds out to a wallet.
type Transferor interface {
	Transfer(ctx context.Context, wallet string, amt amount.Amount) error
}

// Handlers serves the three claim operations over the shared engine.
type Handlers struct {
	eng        *engine.Engine
	transferor Transferor
	pub        *events.Publisher
	clock      clockwork.Clock
	log        *logrus.Entry
}

// NewHandlers creates the claim handlers. The transferor may be nil
// until wired; claims fail until then.
func NewHandlers(eng *engine.Engine, transferor Transferor, pub *events.Publisher, clock clockwork.Clock, log *logrus.Entry) *Handlers {
	return &Handlers{
		eng:        eng,
		transferor: transferor,
		pub:        pub,
		clock:      clock,
		log:        log,
	}
}

// SetTransferor swaps the transfer collaborator.
func (h *Handlers) SetTransferor(t Transferor) { h.transferor = t }

// ClaimStakerReward pays a staker their percentage of an epoch's
// accumulated reward. The percentage is supplied by the staking oracle
// in Precision units and is capped at 100% per call; the ledger's
// overpay check bounds the cumulative payout across calls.
func (h *Handlers) ClaimStakerReward(ctx context.Context, epoch uint64, staker string, percentage uint64) (amount.Amount, error) {
	if err := h.eng.Guard().Enter(); err != nil {
		return 0, err
	}
	defer h.eng.Guard().Exit()

	if staker == "" {
		return 0, ledger.ErrNullWallet
	}
	if percentage == 0 || percentage > Precision {
		return 0, fmt.Errorf("%w: %d", ErrBadPercentage, percentage)
	}
	if h.transferor == nil {
		return 0, ErrNotConfigured
	}

	h.eng.Lock()
	defer h.eng.Unlock()

	l := h.eng.Ledger()
	amt, err := l.RewardInfo(epoch).Accumulated.MulDiv(percentage, Precision)
	if err != nil {
		return 0, err
	}
	if amt.IsZero() {
		return 0, fmt.Errorf("epoch %d: %w", epoch, ledger.ErrNothingToClaim)
	}
	if _, err := l.DebitReward(epoch, amt); err != nil {
		return 0, err
	}
	if err := h.payOut(ctx, staker, amt, func() error { return l.RestoreReward(epoch, amt) }); err != nil {
		return 0, err
	}

	h.finish("reward", staker, epoch, amt)
	return amt, nil
}

// ClaimRebate pays out a wallet's entire rebate balance.
func (h *Handlers) ClaimRebate(ctx context.Context, wallet string) (amount.Amount, error) {
	return h.claimWallet(ctx, "rebate", wallet,
		h.eng.Ledger().DebitRebate, h.eng.Ledger().RestoreRebate)
}

// ClaimPlatformFee pays out a wallet's entire platform-fee balance.
func (h *Handlers) ClaimPlatformFee(ctx context.Context, wallet string) (amount.Amount, error) {
	return h.claimWallet(ctx, "platform", wallet,
		h.eng.Ledger().DebitPlatform, h.eng.Ledger().RestorePlatform)
}

func (h *Handlers) claimWallet(ctx context.Context, kind, wallet string, debit func(string) (amount.Amount, error), restore func(string, amount.Amount) error) (amount.Amount, error) {
	if err := h.eng.Guard().Enter(); err != nil {
		return 0, err
	}
	defer h.eng.Guard().Exit()

	if wallet == "" {
		return 0, ledger.ErrNullWallet
	}
	if h.transferor == nil {
		return 0, ErrNotConfigured
	}

	h.eng.Lock()
	defer h.eng.Unlock()

	amt, err := debit(wallet)
	if err != nil {
		return 0, err
	}
	if err := h.payOut(ctx, wallet, amt, func() error { return restore(wallet, amt) }); err != nil {
		return 0, err
	}

	h.finish(kind, wallet, 0, amt)
	return amt, nil
}

// payOut debits the treasury and transfers, undoing both the treasury
// debit and the caller's ledger debit if the transfer fails.
func (h *Handlers) payOut(ctx context.Context, wallet string, amt amount.Amount, restoreLedger func() error) error {
	if err := h.eng.Treasury().Debit(amt); err != nil {
		if restoreErr := restoreLedger(); restoreErr != nil {
			return restoreErr
		}
		return err
	}
	if err := h.transferor.Transfer(ctx, wallet, amt); err != nil {
		if restoreErr := h.eng.Treasury().Credit(amt); restoreErr != nil {
			return restoreErr
		}
		if restoreErr := restoreLedger(); restoreErr != nil {
			return restoreErr
		}
		return fmt.Errorf("transfer to %s: %w", wallet, err)
	}
	return nil
}

func (h *Handlers) finish(kind, wallet string, epoch uint64, amt amount.Amount) {
	h.log.WithFields(logrus.Fields{
		"kind":   kind,
		"wallet": wallet,
		"amount": amt,
	}).Info("claim paid")
	h.pub.PublishClaimPaid(events.ClaimPaid{
		Kind:   kind,
		Wallet: wallet,
		Epoch:  epoch,
		Amount: amt,
		Time:   h.clock.Now(),
	})
}
