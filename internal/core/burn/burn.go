// Package burn implements the gated release of free treasury balance
// for conversion and burning. Every gate fails closed: a suspect quote,
// a missing collaborator or an unelapsed interval blocks the burn
// rather than risking funds.
package burn

import (
	"context"
	"errors"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
)

var (
	// ErrTooSoon is returned when the minimum interval since the last
	// successful release has not elapsed.
	ErrTooSoon = errors.New("burn interval not elapsed")

	// ErrCallerNotAllowed is returned when the caller is not on the
	// burn allowlist.
	ErrCallerNotAllowed = errors.New("caller not allowed to release burns")

	// ErrNothingToBurn is returned when the free balance is zero.
	ErrNothingToBurn = errors.New("no free balance to burn")

	// ErrZeroQuote is returned when the price provider quotes zero.
	ErrZeroQuote = errors.New("zero conversion quote")

	// ErrRateCeiling is returned when the quote is at or above the
	// absolute sanity ceiling.
	ErrRateCeiling = errors.New("quote above sane rate ceiling")

	// ErrQuoteDeviation is returned when the quote falls too far below
	// the sanity-oracle rate.
	ErrQuoteDeviation = errors.New("quote deviates below sanity rate")

	// ErrNotConfigured is returned when a required collaborator is not
	// wired.
	ErrNotConfigured = errors.New("burn collaborator not configured")
)

// PriceProvider quotes and executes conversions from the fee token to
// the burn token.
type PriceProvider interface {
	// Quote returns the offered rate for converting amt of src into dst,
	// scaled by the provider's native precision.
	Quote(ctx context.Context, src, dst string, amt amount.Amount) (uint64, error)

	// Convert executes the conversion, rejecting rates below minRate,
	// and returns the output amount.
	Convert(ctx context.Context, dst string, amt amount.Amount, minRate uint64) (amount.Amount, error)
}

// SanityOracle supplies an independent reference price used to reject
// manipulated quotes.
type SanityOracle interface {
	LatestPrice(ctx context.Context) (uint64, error)
}

// Burner destroys converted burn-token.
type Burner interface {
	Burn(ctx context.Context, amt amount.Amount) error
}
