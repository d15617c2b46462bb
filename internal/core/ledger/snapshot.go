package ledger

import (
	"fmt"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
)

// State is the serializable form of the ledger, used by the snapshot
// store.
type State struct {
	Rewards   map[uint64]RewardAccount `json:"rewards"`
	Rebates   map[string]amount.Amount `json:"rebates"`
	Platform  map[string]amount.Amount `json:"platform"`
	TotalOwed amount.Amount            `json:"total_owed"`
}

// Snapshot returns a deep copy of the current ledger state.
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := State{
		Rewards:   make(map[uint64]RewardAccount, len(l.rewards)),
		Rebates:   make(map[string]amount.Amount, len(l.rebates)),
		Platform:  make(map[string]amount.Amount, len(l.platform)),
		TotalOwed: l.owed,
	}
	for e, acct := range l.rewards {
		st.Rewards[e] = *acct
	}
	for w, bal := range l.rebates {
		st.Rebates[w] = bal
	}
	for w, bal := range l.platform {
		st.Platform[w] = bal
	}
	return st
}

// Restore replaces the ledger's state with a previously captured
// snapshot. The snapshot's TotalOwed must match the sum of its unpaid
// balances or the restore is rejected.
func (l *Ledger) Restore(st State) error {
	var sum amount.Amount
	var err error
	for e, acct := range st.Rewards {
		if acct.Paid > acct.Accumulated {
			return fmt.Errorf("snapshot epoch %d: paid exceeds accumulated", e)
		}
		if sum, err = sum.Add(acct.Unpaid()); err != nil {
			return fmt.Errorf("snapshot reward sum: %w", err)
		}
	}
	for w, bal := range st.Rebates {
		if w == "" {
			return ErrNullWallet
		}
		if sum, err = sum.Add(bal); err != nil {
			return fmt.Errorf("snapshot rebate sum: %w", err)
		}
	}
	for w, bal := range st.Platform {
		if w == "" {
			return ErrNullWallet
		}
		if sum, err = sum.Add(bal); err != nil {
			return fmt.Errorf("snapshot platform sum: %w", err)
		}
	}
	if sum != st.TotalOwed {
		return fmt.Errorf("snapshot total owed %s does not match balance sum %s", st.TotalOwed, sum)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rewards = make(map[uint64]*RewardAccount, len(st.Rewards))
	for e, acct := range st.Rewards {
		a := acct
		l.rewards[e] = &a
	}
	l.rebates = make(map[string]amount.Amount, len(st.Rebates))
	for w, bal := range st.Rebates {
		l.rebates[w] = bal
	}
	l.platform = make(map[string]amount.Amount, len(st.Platform))
	for w, bal := range st.Platform {
		l.platform[w] = bal
	}
	l.owed = st.TotalOwed
	return nil
}
