// Package bps implements basis-point fee splitting. All splits use
// integer floor division; the undistributed remainder is never assigned
// to a tracked balance, which deliberately biases rounding toward the
// burn pool.
package bps

import (
	"errors"
	"fmt"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
)

// MaxBps is the total basis points representing 100%.
const MaxBps uint32 = 10_000

// ErrBpsExceeded is returned when a set of basis-point rates sums
// above 100%.
var ErrBpsExceeded = errors.New("basis points exceed 10000")

// Split divides the post-platform fee remainder into its reward and
// rebate components. What is left over (total - reward - rebate) is the
// implicit burn share. Precondition: rewardBps + rebateBps <= MaxBps.
func Split(total amount.Amount, rewardBps, rebateBps uint32) (reward, rebate amount.Amount, err error) {
	if uint64(rewardBps)+uint64(rebateBps) > uint64(MaxBps) {
		return 0, 0, fmt.Errorf("%w: reward %d + rebate %d", ErrBpsExceeded, rewardBps, rebateBps)
	}
	reward, err = total.MulDiv(uint64(rewardBps), uint64(MaxBps))
	if err != nil {
		return 0, 0, err
	}
	rebate, err = total.MulDiv(uint64(rebateBps), uint64(MaxBps))
	if err != nil {
		return 0, 0, err
	}
	return reward, rebate, nil
}

// SplitShares divides total across sharesBps, flooring each share.
// When the shares sum to exactly 100% the final entry absorbs the
// rounding dust so the distribution is exact; otherwise the distributed
// sum may be less than total and the shortfall is the caller's to keep
// free. Fails if the shares sum above 100%.
func SplitShares(total amount.Amount, sharesBps []uint32) ([]amount.Amount, amount.Amount, error) {
	// The sum accumulates in uint64 so a single oversized share cannot
	// wrap uint32 back under the cap.
	var sumBps uint64
	for _, s := range sharesBps {
		sumBps += uint64(s)
		if sumBps > uint64(MaxBps) {
			return nil, 0, fmt.Errorf("%w: shares sum past %d", ErrBpsExceeded, MaxBps)
		}
	}

	shares := make([]amount.Amount, len(sharesBps))
	var distributed amount.Amount
	for i, s := range sharesBps {
		var share amount.Amount
		var err error
		if sumBps == uint64(MaxBps) && i == len(sharesBps)-1 {
			share, err = total.Sub(distributed)
		} else {
			share, err = total.MulDiv(uint64(s), uint64(MaxBps))
		}
		if err != nil {
			return nil, 0, err
		}
		shares[i] = share
		distributed, err = distributed.Add(share)
		if err != nil {
			return nil, 0, err
		}
	}
	return shares, distributed, nil
}
