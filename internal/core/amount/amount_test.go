package amount

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddChecked(t *testing.T) {
	sum, err := Amount(1).Add(2)
	require.NoError(t, err)
	require.Equal(t, Amount(3), sum)

	_, err = Amount(math.MaxUint64).Add(1)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestSubChecked(t *testing.T) {
	d, err := Amount(5).Sub(5)
	require.NoError(t, err)
	require.Equal(t, Amount(0), d)

	_, err = Amount(4).Sub(5)
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name     string
		a        Amount
		num, den uint64
		want     Amount
		wantErr  bool
	}{
		{name: "floor rounding", a: 900, num: 3000, den: 10000, want: 270},
		{name: "exact", a: 100, num: 10000, den: 10000, want: 100},
		{name: "truncates remainder", a: 100, num: 3333, den: 10000, want: 33},
		{name: "large value needs 128-bit intermediate", a: math.MaxUint64 / 2, num: 2, den: 2, want: math.MaxUint64 / 2},
		{name: "quotient overflows", a: math.MaxUint64, num: 3, den: 2, wantErr: true},
		{name: "zero denominator", a: 1, num: 1, den: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.MulDiv(tt.num, tt.den)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
