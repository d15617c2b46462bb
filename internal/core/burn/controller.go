package burn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/bps"
	"github.com/dexfoundry/feesplitd/internal/core/engine"
	"github.com/dexfoundry/feesplitd/internal/events"
)

// Config carries the burn gates. All of them are runtime-mutable
// through the admin surface.
type Config struct {
	// MinInterval is the minimum time between successful releases.
	MinInterval time.Duration

	// MaxPerCall caps the amount released in one call. Zero means no
	// cap.
	MaxPerCall amount.Amount

	// MaxSaneRate is the absolute quote ceiling. A quote at or above it
	// is rejected regardless of the sanity oracle.
	MaxSaneRate uint64

	// MaxDeviationBps is how far below the sanity rate a quote may fall
	// before it is rejected.
	MaxDeviationBps uint32

	// SrcAsset and DstAsset name the fee token and the burn token.
	SrcAsset string
	DstAsset string

	// Callers is the release allowlist. Empty allows any caller.
	Callers []string
}

// Controller releases free balance for burning. It serializes against
// fee intake and claims through the engine lock and shares the
// process-wide reentrancy guard.
type Controller struct {
	mu sync.Mutex

	cfg      Config
	provider PriceProvider
	burner   Burner
	sanity   *SanityHistory

	eng   *engine.Engine
	pub   *events.Publisher
	clock clockwork.Clock
	log   *logrus.Entry

	lastRelease time.Time
	lastQuote   uint64
	lastSanity  uint64
}

// NewController creates a burn controller. Provider and burner may be
// nil until wired through the admin surface; releases fail closed until
// then.
func NewController(cfg Config, eng *engine.Engine, provider PriceProvider, burner Burner, sanity *SanityHistory, pub *events.Publisher, clock clockwork.Clock, log *logrus.Entry) *Controller {
	if cfg.MaxDeviationBps == 0 {
		cfg.MaxDeviationBps = 1000
	}
	if sanity == nil {
		sanity = NewSanityHistory("", nil, clock.Now())
	}
	return &Controller{
		cfg:      cfg,
		provider: provider,
		burner:   burner,
		sanity:   sanity,
		eng:      eng,
		pub:      pub,
		clock:    clock,
		log:      log,
	}
}

// SetProvider swaps the price provider.
func (c *Controller) SetProvider(p PriceProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = p
}

// SetBurner swaps the burn collaborator.
func (c *Controller) SetBurner(b Burner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.burner = b
}

// SwapSanityOracle retires the active sanity oracle and installs a new
// one.
func (c *Controller) SwapSanityOracle(name string, o SanityOracle) {
	c.sanity.Swap(name, o, c.clock.Now())
}

// Sanity returns the sanity oracle history.
func (c *Controller) Sanity() *SanityHistory { return c.sanity }

// SetMaxPerCall updates the per-call release cap.
func (c *Controller) SetMaxPerCall(max amount.Amount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.MaxPerCall = max
}

// SetMinInterval updates the minimum release interval.
func (c *Controller) SetMinInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.MinInterval = d
}

// SetMaxDeviationBps updates the sanity deviation tolerance.
func (c *Controller) SetMaxDeviationBps(bps uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.MaxDeviationBps = bps
}

// SetCallers replaces the release allowlist.
func (c *Controller) SetCallers(callers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Callers = append([]string(nil), callers...)
}

// Snapshot returns the current gate configuration.
func (c *Controller) Snapshot() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg := c.cfg
	cfg.Callers = append([]string(nil), c.cfg.Callers...)
	return cfg
}

// ReleaseForBurn takes free balance out of the treasury, converts it to
// the burn token and burns the result. It returns the released amount.
// Failing any gate leaves the treasury untouched. The last-release
// timestamp moves only once funds have actually left through Convert,
// so a failed quote check never consumes the interval.
func (c *Controller) ReleaseForBurn(ctx context.Context, caller string) (amount.Amount, error) {
	if err := c.eng.Guard().Enter(); err != nil {
		return 0, err
	}
	defer c.eng.Guard().Exit()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.eng.Lock()
	defer c.eng.Unlock()

	if err := c.checkCaller(caller); err != nil {
		return 0, err
	}
	now := c.clock.Now()
	if !c.lastRelease.IsZero() && now.Sub(c.lastRelease) < c.cfg.MinInterval {
		return 0, fmt.Errorf("%w: next release at %s", ErrTooSoon, c.lastRelease.Add(c.cfg.MinInterval).Format(time.RFC3339))
	}
	if c.provider == nil || c.burner == nil {
		return 0, ErrNotConfigured
	}

	release, err := c.freeBalance()
	if err != nil {
		return 0, err
	}
	if release.IsZero() {
		return 0, ErrNothingToBurn
	}
	if !c.cfg.MaxPerCall.IsZero() {
		release = amount.Min(release, c.cfg.MaxPerCall)
	}

	minRate, err := c.gateQuote(ctx, release)
	if err != nil {
		return 0, err
	}

	if err := c.eng.Treasury().Debit(release); err != nil {
		return 0, err
	}
	out, err := c.provider.Convert(ctx, c.cfg.DstAsset, release, minRate)
	if err != nil {
		// Conversion did not execute; the funds stay held.
		if restoreErr := c.eng.Treasury().Credit(release); restoreErr != nil {
			return 0, restoreErr
		}
		return 0, fmt.Errorf("convert for burn: %w", err)
	}
	c.lastRelease = now

	rec := events.BurnRecord{
		Released:   release,
		Burned:     out,
		QuoteRate:  c.lastQuote,
		SanityRate: c.lastSanity,
		Time:       now,
	}
	if err := c.burner.Burn(ctx, out); err != nil {
		// The source amount is already converted and with the burn
		// collaborator; the release stands and the burn is retried by
		// the caller after the interval. The record is still published
		// so the treasury debit shows up in history and metrics.
		rec.BurnFailed = true
		c.pub.PublishBurn(rec)
		return 0, fmt.Errorf("burn %s: %w", out, err)
	}

	c.log.WithFields(logrus.Fields{
		"released": release,
		"burned":   out,
	}).Info("burn released")
	c.pub.PublishBurn(rec)
	return release, nil
}

// freeBalance computes held minus owed. An underflow means the ledger
// tracks more owed than the treasury holds, which is fatal.
func (c *Controller) freeBalance() (amount.Amount, error) {
	free, err := c.eng.Treasury().Held().Sub(c.eng.Ledger().TotalOwed())
	if err != nil {
		return 0, fmt.Errorf("%w: owed exceeds held balance", engine.ErrInsolvent)
	}
	return free, nil
}

// gateQuote obtains a quote and validates it against every price gate,
// returning the minimum rate to enforce at conversion time.
func (c *Controller) gateQuote(ctx context.Context, release amount.Amount) (uint64, error) {
	quote, err := c.provider.Quote(ctx, c.cfg.SrcAsset, c.cfg.DstAsset, release)
	if err != nil {
		return 0, fmt.Errorf("quote: %w", err)
	}
	if quote == 0 {
		return 0, ErrZeroQuote
	}
	if c.cfg.MaxSaneRate > 0 && quote >= c.cfg.MaxSaneRate {
		return 0, fmt.Errorf("%w: %d >= %d", ErrRateCeiling, quote, c.cfg.MaxSaneRate)
	}

	oracle := c.sanity.Active()
	if oracle == nil {
		return 0, fmt.Errorf("%w: no sanity oracle", ErrNotConfigured)
	}
	sanityRate, err := oracle.LatestPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("sanity price: %w", err)
	}
	dev := c.cfg.MaxDeviationBps
	if dev > bps.MaxBps {
		dev = bps.MaxBps
	}
	tolerated, err := amount.Amount(sanityRate).MulDiv(uint64(bps.MaxBps-dev), uint64(bps.MaxBps))
	if err != nil {
		return 0, fmt.Errorf("sanity floor: %w", err)
	}
	floor := uint64(tolerated)
	if quote < floor {
		return 0, fmt.Errorf("%w: quote %d below floor %d (sanity %d)", ErrQuoteDeviation, quote, floor, sanityRate)
	}
	c.lastSanity = sanityRate
	c.lastQuote = quote
	return floor, nil
}

// checkCaller enforces the release allowlist.
func (c *Controller) checkCaller(caller string) error {
	if len(c.cfg.Callers) == 0 {
		return nil
	}
	for _, allowed := range c.cfg.Callers {
		if caller == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrCallerNotAllowed, caller)
}
