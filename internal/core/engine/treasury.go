package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
)

// ErrInsolvent signals that a debit would take the held balance below
// zero or below TotalOwed. It is fatal and never clamped.
var ErrInsolvent = errors.New("treasury insolvent")

// Treasury tracks the contract-held balance of the fee token. Every fee
// received credits it; every payout and burn release debits it.
type Treasury struct {
	mu   sync.RWMutex
	held amount.Amount
}

// NewTreasury creates a treasury with the given opening balance.
func NewTreasury(opening amount.Amount) *Treasury {
	return &Treasury{held: opening}
}

// Credit adds received funds to the held balance.
func (t *Treasury) Credit(amt amount.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	next, err := t.held.Add(amt)
	if err != nil {
		return fmt.Errorf("treasury held balance: %w", err)
	}
	t.held = next
	return nil
}

// Debit removes paid-out funds from the held balance.
func (t *Treasury) Debit(amt amount.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	next, err := t.held.Sub(amt)
	if err != nil {
		return fmt.Errorf("%w: debit %s exceeds held %s", ErrInsolvent, amt, t.held)
	}
	t.held = next
	return nil
}

// Held returns the current held balance.
func (t *Treasury) Held() amount.Amount {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.held
}
