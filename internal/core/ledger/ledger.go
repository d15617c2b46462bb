// Package ledger implements the payout ledger: per-epoch staker reward
// balances, per-wallet rebate and platform-fee balances, and the running
// TotalOwed counter used as the solvency line. The ledger is the sole
// owner of these maps; every mutation funnels through the operation set
// below and keeps TotalOwed equal to the sum of all unpaid balances.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/bps"
)

var (
	// ErrNullWallet is returned when a credit or debit names an empty
	// wallet address.
	ErrNullWallet = errors.New("null wallet address")

	// ErrLengthMismatch is returned when rebate wallets and shares
	// disagree in length.
	ErrLengthMismatch = errors.New("rebate wallets and shares length mismatch")

	// ErrNothingToClaim is returned when a debit finds no claimable
	// balance.
	ErrNothingToClaim = errors.New("nothing to claim")

	// ErrOverpay is returned when a reward debit would pay an epoch
	// beyond its accumulated amount.
	ErrOverpay = errors.New("reward debit exceeds accumulated amount")

	// ErrOwedUnderflow signals that TotalOwed accounting went below the
	// sum of balances being released. It indicates a logic error
	// elsewhere and must abort, never clamp.
	ErrOwedUnderflow = errors.New("total owed underflow")
)

// RewardAccount tracks one epoch's staker reward pot.
type RewardAccount struct {
	Accumulated amount.Amount `json:"accumulated"`
	Paid        amount.Amount `json:"paid"`
}

// Unpaid returns the remainder still owed for the epoch.
func (a RewardAccount) Unpaid() amount.Amount {
	// Paid <= Accumulated is a ledger invariant; Sub cannot fail here.
	unpaid, _ := a.Accumulated.Sub(a.Paid)
	return unpaid
}

// Ledger holds all payout balances. Reward accounts are created lazily
// on first contribution and never deleted, only zeroed by forfeiture.
type Ledger struct {
	mu       sync.RWMutex
	rewards  map[uint64]*RewardAccount
	rebates  map[string]amount.Amount
	platform map[string]amount.Amount
	owed     amount.Amount
}

// New creates an empty payout ledger.
func New() *Ledger {
	return &Ledger{
		rewards:  make(map[uint64]*RewardAccount),
		rebates:  make(map[string]amount.Amount),
		platform: make(map[string]amount.Amount),
	}
}

// CreditPlatform adds a platform fee to a wallet's balance and to
// TotalOwed.
func (l *Ledger) CreditPlatform(wallet string, amt amount.Amount) error {
	if wallet == "" {
		return ErrNullWallet
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := l.platform[wallet].Add(amt)
	if err != nil {
		return fmt.Errorf("platform balance for %s: %w", wallet, err)
	}
	owed, err := l.owed.Add(amt)
	if err != nil {
		return fmt.Errorf("total owed: %w", err)
	}
	l.platform[wallet] = next
	l.owed = owed
	return nil
}

// CreditReward adds a reward contribution to an epoch's pot and to
// TotalOwed.
func (l *Ledger) CreditReward(epoch uint64, amt amount.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.rewards[epoch]
	if acct == nil {
		acct = &RewardAccount{}
	}
	next, err := acct.Accumulated.Add(amt)
	if err != nil {
		return fmt.Errorf("reward pot for epoch %d: %w", epoch, err)
	}
	owed, err := l.owed.Add(amt)
	if err != nil {
		return fmt.Errorf("total owed: %w", err)
	}
	acct.Accumulated = next
	l.rewards[epoch] = acct
	l.owed = owed
	return nil
}

// CreditRebates splits rebateAmount across the given wallets by basis
// points and credits each. It returns the per-wallet shares and the sum
// actually credited, which may be less than rebateAmount; the shortfall
// is never tracked as owed and stays in the free balance. Fails before
// any mutation on a null wallet, a length mismatch, or shares summing
// above 100%.
func (l *Ledger) CreditRebates(wallets []string, sharesBps []uint32, rebateAmount amount.Amount) ([]amount.Amount, amount.Amount, error) {
	if len(wallets) != len(sharesBps) {
		return nil, 0, ErrLengthMismatch
	}
	for _, w := range wallets {
		if w == "" {
			return nil, 0, ErrNullWallet
		}
	}
	shares, distributed, err := bps.SplitShares(rebateAmount, sharesBps)
	if err != nil {
		return nil, 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Validate the whole batch before touching any balance so a failure
	// leaves no partial credit behind.
	staged := make(map[string]amount.Amount, len(wallets))
	for i, w := range wallets {
		base, ok := staged[w]
		if !ok {
			base = l.rebates[w]
		}
		next, err := base.Add(shares[i])
		if err != nil {
			return nil, 0, fmt.Errorf("rebate balance for %s: %w", w, err)
		}
		staged[w] = next
	}
	owed, err := l.owed.Add(distributed)
	if err != nil {
		return nil, 0, fmt.Errorf("total owed: %w", err)
	}

	for w, next := range staged {
		l.rebates[w] = next
	}
	l.owed = owed
	return shares, distributed, nil
}

// DebitReward records a payout of amt against an epoch's pot, returning
// the amount paid before this debit. Fails with ErrOverpay if the debit
// would exceed the accumulated amount.
func (l *Ledger) DebitReward(epoch uint64, amt amount.Amount) (amount.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.rewards[epoch]
	if acct == nil {
		return 0, fmt.Errorf("epoch %d: %w", epoch, ErrNothingToClaim)
	}
	if amt > acct.Unpaid() {
		return 0, fmt.Errorf("epoch %d: %w", epoch, ErrOverpay)
	}
	owed, err := l.owed.Sub(amt)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOwedUnderflow, err)
	}

	prevPaid := acct.Paid
	acct.Paid += amt
	l.owed = owed
	return prevPaid, nil
}

// RestoreReward reverts a reward debit after a failed external payout,
// putting the amount back into the epoch's unpaid remainder and
// TotalOwed.
func (l *Ledger) RestoreReward(epoch uint64, amt amount.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.rewards[epoch]
	if acct == nil || amt > acct.Paid {
		return fmt.Errorf("restore reward for epoch %d: nothing debited", epoch)
	}
	owed, err := l.owed.Add(amt)
	if err != nil {
		return fmt.Errorf("total owed: %w", err)
	}
	acct.Paid -= amt
	l.owed = owed
	return nil
}

// DebitRebate zeroes a wallet's rebate balance and returns it. Fails
// with ErrNothingToClaim on an empty balance.
func (l *Ledger) DebitRebate(wallet string) (amount.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitWallet(l.rebates, wallet)
}

// DebitPlatform zeroes a wallet's platform-fee balance and returns it.
func (l *Ledger) DebitPlatform(wallet string) (amount.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitWallet(l.platform, wallet)
}

func (l *Ledger) debitWallet(m map[string]amount.Amount, wallet string) (amount.Amount, error) {
	if wallet == "" {
		return 0, ErrNullWallet
	}
	bal := m[wallet]
	if bal.IsZero() {
		return 0, fmt.Errorf("wallet %s: %w", wallet, ErrNothingToClaim)
	}
	owed, err := l.owed.Sub(bal)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOwedUnderflow, err)
	}
	m[wallet] = 0
	l.owed = owed
	return bal, nil
}

// RestoreRebate reverts a rebate debit after a failed external payout.
func (l *Ledger) RestoreRebate(wallet string, amt amount.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restoreWallet(l.rebates, wallet, amt)
}

// RestorePlatform reverts a platform-fee debit after a failed external
// payout.
func (l *Ledger) RestorePlatform(wallet string, amt amount.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restoreWallet(l.platform, wallet, amt)
}

func (l *Ledger) restoreWallet(m map[string]amount.Amount, wallet string, amt amount.Amount) error {
	next, err := m[wallet].Add(amt)
	if err != nil {
		return fmt.Errorf("restore balance for %s: %w", wallet, err)
	}
	owed, err := l.owed.Add(amt)
	if err != nil {
		return fmt.Errorf("total owed: %w", err)
	}
	m[wallet] = next
	l.owed = owed
	return nil
}

// ForfeitRewardEpoch zeroes an epoch's unpaid reward remainder, returns
// the forfeited amount, and releases it from TotalOwed. The forfeited
// funds become free balance, implicitly available to burn. Forfeiting a
// partially paid epoch gives up only the remainder.
func (l *Ledger) ForfeitRewardEpoch(epoch uint64) (amount.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.rewards[epoch]
	if acct == nil {
		return 0, nil
	}
	unpaid := acct.Unpaid()
	if unpaid.IsZero() {
		return 0, nil
	}
	owed, err := l.owed.Sub(unpaid)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOwedUnderflow, err)
	}
	acct.Accumulated = acct.Paid
	l.owed = owed
	return unpaid, nil
}

// TotalOwed returns the sum of every balance currently owed to a
// tracked account.
func (l *Ledger) TotalOwed() amount.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owed
}

// RewardInfo returns the reward account for an epoch; a zero account if
// the epoch has no contributions.
func (l *Ledger) RewardInfo(epoch uint64) RewardAccount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if acct := l.rewards[epoch]; acct != nil {
		return *acct
	}
	return RewardAccount{}
}

// RebateBalance returns a wallet's claimable rebate balance.
func (l *Ledger) RebateBalance(wallet string) amount.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rebates[wallet]
}

// PlatformBalance returns a wallet's claimable platform-fee balance.
func (l *Ledger) PlatformBalance(wallet string) amount.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.platform[wallet]
}

// RewardEpochs returns every epoch with a reward account, in no
// particular order.
func (l *Ledger) RewardEpochs() []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	epochs := make([]uint64, 0, len(l.rewards))
	for e := range l.rewards {
		epochs = append(epochs, e)
	}
	return epochs
}
