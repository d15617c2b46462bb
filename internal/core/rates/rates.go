// Package rates caches the epoch-scoped burn/reward/rebate basis points
// supplied by the governance oracle.
package rates

import (
	"context"
	"errors"
	"time"

	"github.com/dexfoundry/feesplitd/internal/core/bps"
)

// RateSet is the burn/reward/rebate split in force for one epoch.
type RateSet struct {
	Epoch     uint64    `json:"epoch"`
	BurnBps   uint32    `json:"burn_bps"`
	RewardBps uint32    `json:"reward_bps"`
	RebateBps uint32    `json:"rebate_bps"`
	Expiry    time.Time `json:"expiry"`
}

// Validate checks that the three components sum to exactly 100%.
func (r RateSet) Validate() error {
	if r.BurnBps+r.RewardBps+r.RebateBps != bps.MaxBps {
		return ErrBadRateSum
	}
	return nil
}

// ErrBadRateSum is returned when the oracle supplies a rate set whose
// components do not sum to 100%. This is a fatal configuration error;
// the cache never corrects it silently.
var ErrBadRateSum = errors.New("oracle rates do not sum to 10000 bps")

// GovernanceOracle supplies epoch rates and forfeiture decisions. It is
// an external collaborator; only the interface lives in this repo.
type GovernanceOracle interface {
	// LatestRates returns the rate set for the current epoch together
	// with its expiry.
	LatestRates(ctx context.Context) (RateSet, error)

	// ShouldForfeitEpoch reports whether an epoch's unclaimed reward
	// should be forfeited to the burn pool.
	ShouldForfeitEpoch(ctx context.Context, epoch uint64) (bool, error)
}
