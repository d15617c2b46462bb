// Package events carries the publisher that fans out fee-distribution
// lifecycle events to subscribers such as the websocket stream, the
// history archive and the metrics collector.
package events

import (
	"time"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
)

// Distribution describes one completed fee split.
type Distribution struct {
	// Seq is the monotonically increasing distribution sequence number.
	Seq uint64

	// Epoch is the reward epoch the staker share was credited to.
	Epoch uint64

	// Asset identifies the fee token.
	Asset string

	// FeeAmount is the gross trading fee received.
	FeeAmount amount.Amount

	// PlatformFee is the flat platform cut taken off the top.
	PlatformFee amount.Amount

	// BurnAmount is the share retained for burning.
	BurnAmount amount.Amount

	// RewardAmount is the share credited to the epoch's staker pot.
	RewardAmount amount.Amount

	// RebateAmount is the sum credited across rebate wallets.
	RebateAmount amount.Amount

	// RebateWallets and RebateShares list the per-wallet rebate split.
	RebateWallets []string
	RebateShares  []amount.Amount

	// Time is when the distribution was applied.
	Time time.Time
}

// RatesUpdate describes a rate-set refresh from the governance oracle.
type RatesUpdate struct {
	Epoch     uint64
	BurnBps   uint32
	RewardBps uint32
	RebateBps uint32
	Expiry    time.Time
}

// BurnRecord describes one completed burn release.
type BurnRecord struct {
	// Released is the amount taken from the free balance.
	Released amount.Amount

	// Burned is the amount of burn-token received from conversion.
	Burned amount.Amount

	// BurnFailed marks a release whose converted funds reached the burn
	// collaborator but whose destruction call failed. The release
	// stands; the record keeps the treasury debit reconcilable.
	BurnFailed bool

	// QuoteRate and SanityRate are the conversion rates that gated the
	// release, in the burner's native precision.
	QuoteRate  uint64
	SanityRate uint64

	Time time.Time
}

// Forfeiture describes an expired reward epoch being reclaimed.
type Forfeiture struct {
	Epoch    uint64
	Returned amount.Amount
	Time     time.Time
}

// ClaimPaid describes a successful payout to a claimant.
type ClaimPaid struct {
	// Kind is "reward", "rebate" or "platform".
	Kind   string
	Wallet string
	Epoch  uint64
	Amount amount.Amount
	Time   time.Time
}

// ConfigChange describes an admin mutation of a runtime parameter.
type ConfigChange struct {
	Parameter string
	Old       string
	New       string
	Time      time.Time
}

// Hooks provides structured callbacks for distribution events.
type Hooks struct {
	// OnDistribution is called after a fee split is applied.
	OnDistribution func(d Distribution)

	// OnRatesUpdate is called after the rate cache accepts a refresh.
	OnRatesUpdate func(u RatesUpdate)

	// OnBurn is called after a burn release completes.
	OnBurn func(b BurnRecord)

	// OnForfeiture is called after an epoch's rewards are reclaimed.
	OnForfeiture func(f Forfeiture)

	// OnClaimPaid is called after a payout transfer succeeds.
	OnClaimPaid func(c ClaimPaid)

	// OnConfigChange is called after an admin parameter change.
	OnConfigChange func(c ConfigChange)
}

// Publisher fans events out to the registered hooks. Hooks run on their
// own goroutine so a slow subscriber cannot stall the engine.
type Publisher struct {
	hooks *Hooks
}

// NewPublisher creates a publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// SetHooks replaces the registered hooks.
func (p *Publisher) SetHooks(hooks *Hooks) {
	p.hooks = hooks
}

// Hooks returns the currently registered hooks.
func (p *Publisher) Hooks() *Hooks {
	return p.hooks
}

// HasSubscribers reports whether any hook is registered.
func (p *Publisher) HasSubscribers() bool {
	h := p.hooks
	return h != nil && (h.OnDistribution != nil || h.OnRatesUpdate != nil ||
		h.OnBurn != nil || h.OnForfeiture != nil || h.OnClaimPaid != nil ||
		h.OnConfigChange != nil)
}

// PublishDistribution publishes a completed fee split.
func (p *Publisher) PublishDistribution(d Distribution) {
	if p.hooks != nil && p.hooks.OnDistribution != nil {
		go p.hooks.OnDistribution(d)
	}
}

// PublishRatesUpdate publishes an accepted rate-set refresh.
func (p *Publisher) PublishRatesUpdate(u RatesUpdate) {
	if p.hooks != nil && p.hooks.OnRatesUpdate != nil {
		go p.hooks.OnRatesUpdate(u)
	}
}

// PublishBurn publishes a completed burn release.
func (p *Publisher) PublishBurn(b BurnRecord) {
	if p.hooks != nil && p.hooks.OnBurn != nil {
		go p.hooks.OnBurn(b)
	}
}

// PublishForfeiture publishes a reclaimed reward epoch.
func (p *Publisher) PublishForfeiture(f Forfeiture) {
	if p.hooks != nil && p.hooks.OnForfeiture != nil {
		go p.hooks.OnForfeiture(f)
	}
}

// PublishClaimPaid publishes a successful payout.
func (p *Publisher) PublishClaimPaid(c ClaimPaid) {
	if p.hooks != nil && p.hooks.OnClaimPaid != nil {
		go p.hooks.OnClaimPaid(c)
	}
}

// PublishConfigChange publishes an admin parameter change.
func (p *Publisher) PublishConfigChange(c ConfigChange) {
	if p.hooks != nil && p.hooks.OnConfigChange != nil {
		go p.hooks.OnConfigChange(c)
	}
}
