package bps

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name                 string
		total                amount.Amount
		rewardBps, rebateBps uint32
		wantReward           amount.Amount
		wantRebate           amount.Amount
		wantErr              error
	}{
		{name: "30/30 split of 900", total: 900, rewardBps: 3000, rebateBps: 3000, wantReward: 270, wantRebate: 270},
		{name: "all to burn", total: 900, rewardBps: 0, rebateBps: 0, wantReward: 0, wantRebate: 0},
		{name: "everything split", total: 1000, rewardBps: 5000, rebateBps: 5000, wantReward: 500, wantRebate: 500},
		{name: "floor favors burn", total: 7, rewardBps: 3333, rebateBps: 3333, wantReward: 2, wantRebate: 2},
		{name: "rates above 100%", total: 100, rewardBps: 6000, rebateBps: 5000, wantErr: ErrBpsExceeded},
		{name: "rate sum wraps uint32", total: 100, rewardBps: 10_000, rebateBps: 4_294_962_296, wantErr: ErrBpsExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reward, rebate, err := Split(tt.total, tt.rewardBps, tt.rebateBps)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantReward, reward)
			require.Equal(t, tt.wantRebate, rebate)

			// Remainder is the burn share; it must never be negative.
			require.LessOrEqual(t, uint64(reward)+uint64(rebate), uint64(tt.total))
		})
	}
}

func TestSplitShares(t *testing.T) {
	tests := []struct {
		name            string
		total           amount.Amount
		shares          []uint32
		want            []amount.Amount
		wantDistributed amount.Amount
		wantErr         error
	}{
		{
			name:            "60/40 of 270 is exact",
			total:           270,
			shares:          []uint32{6000, 4000},
			want:            []amount.Amount{162, 108},
			wantDistributed: 270,
		},
		{
			name:            "thirds of 100, last wallet takes the dust",
			total:           100,
			shares:          []uint32{3333, 3333, 3334},
			want:            []amount.Amount{33, 33, 34},
			wantDistributed: 100,
		},
		{
			name:            "partial shares leave a shortfall",
			total:           100,
			shares:          []uint32{2500, 2500},
			want:            []amount.Amount{25, 25},
			wantDistributed: 50,
		},
		{
			name:    "shares above 100%",
			total:   100,
			shares:  []uint32{9000, 2000},
			wantErr: ErrBpsExceeded,
		},
		{
			// 10000 + 4294962296 wraps uint32 back to exactly 5000.
			name:    "share sum wraps uint32",
			total:   1000,
			shares:  []uint32{10_000, 4_294_962_296},
			wantErr: ErrBpsExceeded,
		},
		{
			name:    "single share above 100%",
			total:   1000,
			shares:  []uint32{4_294_962_296},
			wantErr: ErrBpsExceeded,
		},
		{
			name:            "empty shares",
			total:           100,
			shares:          nil,
			want:            []amount.Amount{},
			wantDistributed: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, distributed, err := SplitShares(tt.total, tt.shares)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantDistributed, distributed)
			require.LessOrEqual(t, uint64(distributed), uint64(tt.total))
		})
	}
}
