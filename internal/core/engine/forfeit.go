package engine

import (
	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/events"
)

// ForfeitEpoch reclaims an epoch's unpaid reward remainder into the
// free balance. Returns the reclaimed amount, zero when the epoch has
// nothing left to forfeit. No event is published for a no-op.
func (e *Engine) ForfeitEpoch(epoch uint64) (amount.Amount, error) {
	if err := e.guard.Enter(); err != nil {
		return 0, err
	}
	defer e.guard.Exit()

	e.mu.Lock()
	defer e.mu.Unlock()

	returned, err := e.ledger.ForfeitRewardEpoch(epoch)
	if err != nil {
		return 0, err
	}
	if returned.IsZero() {
		return 0, nil
	}

	e.log.WithField("epoch", epoch).WithField("returned", returned).Info("reward epoch forfeited")
	e.events.PublishForfeiture(events.Forfeiture{
		Epoch:    epoch,
		Returned: returned,
		Time:     e.clock.Now(),
	})
	return returned, nil
}
