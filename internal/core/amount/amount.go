// Package amount provides the base-asset unit type used throughout the
// payout ledger. All balances are unsigned integers in the asset's
// smallest unit; arithmetic is overflow-checked because an unchecked
// wrap here is a direct loss of funds.
package amount

import (
	"errors"
	"fmt"
	"math/bits"
)

// Amount is a quantity of the base asset in its smallest unit.
type Amount uint64

var (
	// ErrOverflow is returned when an addition or multiplication would
	// exceed the representable range.
	ErrOverflow = errors.New("amount overflow")

	// ErrUnderflow is returned when a subtraction would go negative.
	ErrUnderflow = errors.New("amount underflow")
)

// Add returns a+b, failing on overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// Sub returns a-b, failing if b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", ErrUnderflow, a, b)
	}
	return a - b, nil
}

// MulDiv returns floor(a * num / den) using 128-bit intermediate
// precision, so a*num may exceed 64 bits without losing units.
func (a Amount) MulDiv(num, den uint64) (Amount, error) {
	if den == 0 {
		return 0, errors.New("amount division by zero")
	}
	hi, lo := bits.Mul64(uint64(a), num)
	if hi >= den {
		return 0, fmt.Errorf("%w: %d * %d / %d", ErrOverflow, a, num, den)
	}
	q, _ := bits.Div64(hi, lo, den)
	return Amount(q), nil
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a == 0
}

func (a Amount) String() string {
	return fmt.Sprintf("%d", uint64(a))
}
