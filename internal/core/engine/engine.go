// Package engine processes incoming fee events: it credits the treasury,
// splits the fee by the active rate set and records every share in the
// payout ledger. Processing is phased the same way for every event:
// preflight validates the event alone, preclaim validates it against
// current state, doApply mutates. A failure in either validation phase
// leaves no state change behind.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/bps"
	"github.com/dexfoundry/feesplitd/internal/core/ledger"
	"github.com/dexfoundry/feesplitd/internal/core/rates"
	"github.com/dexfoundry/feesplitd/internal/events"
)

var (
	// ErrFeeBelowPlatform is returned when the platform fee exceeds the
	// total fee paid.
	ErrFeeBelowPlatform = errors.New("platform fee exceeds fee total")

	// ErrNoPlatformWallet is returned when a nonzero platform fee names
	// no destination wallet.
	ErrNoPlatformWallet = errors.New("platform fee without platform wallet")
)

// FeeEvent is one incoming trading-fee notification.
type FeeEvent struct {
	// FeeTotalPaid is the gross fee transferred in with this event.
	FeeTotalPaid amount.Amount

	// PlatformFee is the flat platform cut, already included in
	// FeeTotalPaid.
	PlatformFee    amount.Amount
	PlatformWallet string

	// RebateWallets and RebateBps describe the per-wallet split of the
	// rebate share.
	RebateWallets []string
	RebateBps     []uint32
}

// Engine applies fee events against the payout ledger and treasury.
// All state-mutating operations in the process serialize behind its
// mutex; the guard is shared with the claim and burn entry points.
type Engine struct {
	mu sync.Mutex

	guard    *Guard
	ledger   *ledger.Ledger
	rates    *rates.Cache
	treasury *Treasury
	events   *events.Publisher
	clock    clockwork.Clock
	log      *logrus.Entry

	asset string
	seq   uint64
}

// New creates an engine over the given ledger and treasury.
func New(guard *Guard, l *ledger.Ledger, rc *rates.Cache, t *Treasury, pub *events.Publisher, clock clockwork.Clock, asset string, log *logrus.Entry) *Engine {
	return &Engine{
		guard:    guard,
		ledger:   l,
		rates:    rc,
		treasury: t,
		events:   pub,
		clock:    clock,
		asset:    asset,
		log:      log,
	}
}

// Ledger returns the engine's payout ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Treasury returns the engine's treasury.
func (e *Engine) Treasury() *Treasury { return e.treasury }

// Guard returns the shared reentrancy guard.
func (e *Engine) Guard() *Guard { return e.guard }

// Lock serializes an external state-mutating operation with fee intake.
// The burn and claim entry points hold it across their critical section.
func (e *Engine) Lock() { e.mu.Lock() }

// Unlock releases the engine mutex.
func (e *Engine) Unlock() { e.mu.Unlock() }

// Seq returns the last assigned distribution sequence.
func (e *Engine) Seq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// SetSeq primes the sequence counter, used when resuming from a
// snapshot.
func (e *Engine) SetSeq(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq = seq
}

// Now returns the engine's clock reading.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// distribution is the fully computed effect of a fee event, produced by
// the validation phases and applied verbatim by doApply.
type distribution struct {
	epoch        uint64
	reward       amount.Amount
	rebateBase   amount.Amount
	rebateTotal  amount.Amount
	rebateShares []amount.Amount
	burn         amount.Amount
}

// HandleFee applies one fee event. The caller has already transferred
// FeeTotalPaid to the treasury's account; the engine records the credit
// and splits the remainder after the platform cut by the active rates.
// Exactly one distribution event is published once all state is final.
func (e *Engine) HandleFee(ctx context.Context, ev FeeEvent) (events.Distribution, error) {
	if err := e.guard.Enter(); err != nil {
		return events.Distribution{}, err
	}
	defer e.guard.Exit()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.preflight(ev); err != nil {
		return events.Distribution{}, err
	}
	dist, err := e.preclaim(ctx, ev)
	if err != nil {
		return events.Distribution{}, err
	}
	return e.doApply(ev, dist)
}

// preflight validates the event without touching state.
func (e *Engine) preflight(ev FeeEvent) error {
	if ev.PlatformFee > ev.FeeTotalPaid {
		return fmt.Errorf("%w: %s > %s", ErrFeeBelowPlatform, ev.PlatformFee, ev.FeeTotalPaid)
	}
	if !ev.PlatformFee.IsZero() && ev.PlatformWallet == "" {
		return ErrNoPlatformWallet
	}
	if len(ev.RebateWallets) != len(ev.RebateBps) {
		return ledger.ErrLengthMismatch
	}
	for _, w := range ev.RebateWallets {
		if w == "" {
			return ledger.ErrNullWallet
		}
	}
	return nil
}

// preclaim resolves the rate set and computes every share. Pure-platform
// events short-circuit without consulting the rate cache at all, so a
// misconfigured oracle cannot block platform-fee collection.
func (e *Engine) preclaim(ctx context.Context, ev FeeEvent) (distribution, error) {
	remaining, err := ev.FeeTotalPaid.Sub(ev.PlatformFee)
	if err != nil {
		return distribution{}, err
	}
	if remaining.IsZero() {
		return distribution{}, nil
	}

	rs, err := e.rates.Current(ctx)
	if err != nil {
		return distribution{}, fmt.Errorf("resolve rates: %w", err)
	}
	reward, rebate, err := bps.Split(remaining, rs.RewardBps, rs.RebateBps)
	if err != nil {
		return distribution{}, err
	}
	shares, rebateTotal, err := bps.SplitShares(rebate, ev.RebateBps)
	if err != nil {
		return distribution{}, err
	}

	// The rounding shortfall of the rebate split folds back into the
	// burn residual; only what is actually credited becomes owed. The
	// subtractions are checked so a share computation crediting more
	// than the fee aborts the event instead of wrapping.
	afterReward, err := remaining.Sub(reward)
	if err != nil {
		return distribution{}, fmt.Errorf("burn residual: %w", err)
	}
	burn, err := afterReward.Sub(rebateTotal)
	if err != nil {
		return distribution{}, fmt.Errorf("burn residual: %w", err)
	}
	return distribution{
		epoch:        rs.Epoch,
		reward:       reward,
		rebateBase:   rebate,
		rebateTotal:  rebateTotal,
		rebateShares: shares,
		burn:         burn,
	}, nil
}

// doApply commits the computed distribution. The shares were derived
// from FeeTotalPaid by subtraction and floor division, so the ledger
// credits below cannot overflow once the treasury credit has succeeded;
// any error out of them is a logic fault and aborts the daemon's view
// of the event.
func (e *Engine) doApply(ev FeeEvent, dist distribution) (events.Distribution, error) {
	if err := e.treasury.Credit(ev.FeeTotalPaid); err != nil {
		return events.Distribution{}, err
	}
	if !ev.PlatformFee.IsZero() {
		if err := e.ledger.CreditPlatform(ev.PlatformWallet, ev.PlatformFee); err != nil {
			return events.Distribution{}, err
		}
	}
	if !dist.rebateTotal.IsZero() {
		if _, _, err := e.ledger.CreditRebates(ev.RebateWallets, ev.RebateBps, dist.rebateBase); err != nil {
			return events.Distribution{}, err
		}
	}
	if !dist.reward.IsZero() {
		if err := e.ledger.CreditReward(dist.epoch, dist.reward); err != nil {
			return events.Distribution{}, err
		}
	}

	e.seq++
	out := events.Distribution{
		Seq:           e.seq,
		Epoch:         dist.epoch,
		Asset:         e.asset,
		FeeAmount:     ev.FeeTotalPaid,
		PlatformFee:   ev.PlatformFee,
		BurnAmount:    dist.burn,
		RewardAmount:  dist.reward,
		RebateAmount:  dist.rebateTotal,
		RebateWallets: ev.RebateWallets,
		RebateShares:  dist.rebateShares,
		Time:          e.clock.Now(),
	}
	e.log.WithFields(logrus.Fields{
		"seq":      out.Seq,
		"epoch":    out.Epoch,
		"fee":      out.FeeAmount,
		"platform": out.PlatformFee,
		"burn":     out.BurnAmount,
		"reward":   out.RewardAmount,
		"rebate":   out.RebateAmount,
	}).Info("fee distributed")
	e.events.PublishDistribution(out)
	return out, nil
}
