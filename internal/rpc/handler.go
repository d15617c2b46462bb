package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/core/burn"
	"github.com/dexfoundry/feesplitd/internal/core/claim"
	"github.com/dexfoundry/feesplitd/internal/core/engine"
	"github.com/dexfoundry/feesplitd/internal/core/rates"
	"github.com/dexfoundry/feesplitd/internal/events"
	"github.com/dexfoundry/feesplitd/internal/recent"
	"github.com/dexfoundry/feesplitd/internal/storage/history"
)

// ErrMethodNotFound is returned for unregistered methods.
var ErrMethodNotFound = errors.New("method not found")

// Collaborators resolves admin-supplied references into live
// collaborator instances.
type Collaborators interface {
	ResolveGovernanceOracle(ref string) (rates.GovernanceOracle, error)
	ResolvePriceProvider(ref string) (burn.PriceProvider, error)
	ResolveSanityOracle(ref string) (burn.SanityOracle, error)
}

type methodFunc func(ctx context.Context, role Role, params json.RawMessage) (interface{}, error)

// Handler dispatches JSON-RPC methods onto the daemon's services.
type Handler struct {
	mu   sync.RWMutex
	auth Auth

	eng      *engine.Engine
	burnCtrl *burn.Controller
	claims   *claim.Handlers
	rates    *rates.Cache
	recent   *recent.Cache
	archive  *history.Archive
	resolver Collaborators
	pub      *events.Publisher
	clock    clockwork.Clock
	log      *logrus.Entry

	methods map[string]methodFunc
}

// NewHandler registers every method. Archive and resolver may be nil;
// the methods needing them report "not configured".
func NewHandler(auth Auth, eng *engine.Engine, burnCtrl *burn.Controller, claims *claim.Handlers, rc *rates.Cache, rec *recent.Cache, archive *history.Archive, resolver Collaborators, pub *events.Publisher, clock clockwork.Clock, log *logrus.Entry) *Handler {
	h := &Handler{
		auth:     auth,
		eng:      eng,
		burnCtrl: burnCtrl,
		claims:   claims,
		rates:    rc,
		recent:   rec,
		archive:  archive,
		resolver: resolver,
		pub:      pub,
		clock:    clock,
		log:      log,
	}
	h.methods = map[string]methodFunc{
		"fee_submit":          h.feeSubmit,
		"claim_staker_reward": h.claimStakerReward,
		"claim_rebate":        h.claimRebate,
		"claim_platform_fee":  h.claimPlatformFee,
		"burn_release":        h.burnRelease,
		"reward_forfeit":      h.rewardForfeit,

		"ledger_info":    h.ledgerInfo,
		"reward_info":    h.rewardInfo,
		"wallet_balance": h.walletBalance,
		"rates_info":     h.ratesInfo,
		"history_query":  h.historyQuery,

		"admin_set_oracle":         h.adminSetOracle,
		"admin_set_network_caller": h.adminSetNetworkCaller,
		"admin_set_price_provider": h.adminSetPriceProvider,
		"admin_set_sanity_oracle":  h.adminSetSanityOracle,
		"admin_set_burn_cap":       h.adminSetBurnCap,
		"admin_set_burn_interval":  h.adminSetBurnInterval,
		"admin_set_burn_callers":   h.adminSetBurnCallers,
		"admin_set_burn_deviation": h.adminSetBurnDeviation,
	}
	return h
}

// Handle dispatches one request. The token is the bearer token from the
// transport layer.
func (h *Handler) Handle(ctx context.Context, token, method string, params json.RawMessage) (interface{}, error) {
	fn, ok := h.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}
	h.mu.RLock()
	role := h.auth.RoleFor(token)
	h.mu.RUnlock()
	return fn(ctx, role, params)
}

func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, fmt.Errorf("invalid params: %w", err)
	}
	return v, nil
}

// parseAmt reads a decimal-string amount from request params.
func parseAmt(s string) (amount.Amount, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount.Amount(v), nil
}

type feeSubmitParams struct {
	FeeTotal       string   `json:"fee_total"`
	PlatformFee    string   `json:"platform_fee"`
	PlatformWallet string   `json:"platform_wallet"`
	RebateWallets  []string `json:"rebate_wallets"`
	RebateBps      []uint32 `json:"rebate_bps"`
}

func (h *Handler) feeSubmit(ctx context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleNetwork); err != nil {
		return nil, err
	}
	p, err := decode[feeSubmitParams](params)
	if err != nil {
		return nil, err
	}
	feeTotal, err := parseAmt(p.FeeTotal)
	if err != nil {
		return nil, err
	}
	platformFee, err := parseAmt(p.PlatformFee)
	if err != nil {
		return nil, err
	}
	return h.eng.HandleFee(ctx, engine.FeeEvent{
		FeeTotalPaid:   feeTotal,
		PlatformFee:    platformFee,
		PlatformWallet: p.PlatformWallet,
		RebateWallets:  p.RebateWallets,
		RebateBps:      p.RebateBps,
	})
}

type stakerClaimParams struct {
	Epoch      uint64 `json:"epoch"`
	Staker     string `json:"staker"`
	Percentage string `json:"percentage"`
}

func (h *Handler) claimStakerReward(ctx context.Context, _ Role, params json.RawMessage) (interface{}, error) {
	p, err := decode[stakerClaimParams](params)
	if err != nil {
		return nil, err
	}
	pct, err := strconv.ParseUint(p.Percentage, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid percentage %q: %w", p.Percentage, err)
	}
	paid, err := h.claims.ClaimStakerReward(ctx, p.Epoch, p.Staker, pct)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"paid": paid.String()}, nil
}

type walletParams struct {
	Wallet string `json:"wallet"`
}

func (h *Handler) claimRebate(ctx context.Context, _ Role, params json.RawMessage) (interface{}, error) {
	p, err := decode[walletParams](params)
	if err != nil {
		return nil, err
	}
	paid, err := h.claims.ClaimRebate(ctx, p.Wallet)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"paid": paid.String()}, nil
}

func (h *Handler) claimPlatformFee(ctx context.Context, _ Role, params json.RawMessage) (interface{}, error) {
	p, err := decode[walletParams](params)
	if err != nil {
		return nil, err
	}
	paid, err := h.claims.ClaimPlatformFee(ctx, p.Wallet)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"paid": paid.String()}, nil
}

type burnReleaseParams struct {
	Caller string `json:"caller"`
}

func (h *Handler) burnRelease(ctx context.Context, _ Role, params json.RawMessage) (interface{}, error) {
	p, err := decode[burnReleaseParams](params)
	if err != nil {
		return nil, err
	}
	released, err := h.burnCtrl.ReleaseForBurn(ctx, p.Caller)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"released": released.String()}, nil
}

type epochParams struct {
	Epoch uint64 `json:"epoch"`
}

func (h *Handler) rewardForfeit(_ context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[epochParams](params)
	if err != nil {
		return nil, err
	}
	returned, err := h.eng.ForfeitEpoch(p.Epoch)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"returned": returned.String()}, nil
}

func (h *Handler) ledgerInfo(context.Context, Role, json.RawMessage) (interface{}, error) {
	held := h.eng.Treasury().Held()
	owed := h.eng.Ledger().TotalOwed()
	free, err := held.Sub(owed)
	if err != nil {
		return nil, fmt.Errorf("%w: owed exceeds held balance", engine.ErrInsolvent)
	}
	return map[string]interface{}{
		"held":       held.String(),
		"total_owed": owed.String(),
		"free":       free.String(),
	}, nil
}

func (h *Handler) rewardInfo(_ context.Context, _ Role, params json.RawMessage) (interface{}, error) {
	p, err := decode[epochParams](params)
	if err != nil {
		return nil, err
	}
	acct := h.eng.Ledger().RewardInfo(p.Epoch)
	return map[string]interface{}{
		"epoch":       p.Epoch,
		"accumulated": acct.Accumulated.String(),
		"paid":        acct.Paid.String(),
		"unpaid":      acct.Unpaid().String(),
	}, nil
}

func (h *Handler) walletBalance(_ context.Context, _ Role, params json.RawMessage) (interface{}, error) {
	p, err := decode[walletParams](params)
	if err != nil {
		return nil, err
	}
	l := h.eng.Ledger()
	return map[string]interface{}{
		"wallet":   p.Wallet,
		"rebate":   l.RebateBalance(p.Wallet).String(),
		"platform": l.PlatformBalance(p.Wallet).String(),
	}, nil
}

func (h *Handler) ratesInfo(context.Context, Role, json.RawMessage) (interface{}, error) {
	rs := h.rates.Cached()
	return map[string]interface{}{
		"epoch":      rs.Epoch,
		"burn_bps":   rs.BurnBps,
		"reward_bps": rs.RewardBps,
		"rebate_bps": rs.RebateBps,
		"expiry":     rs.Expiry.UTC().Format(time.RFC3339),
	}, nil
}

type historyParams struct {
	Kind   string `json:"kind"`
	Wallet string `json:"wallet"`
	Limit  int    `json:"limit"`
}

func (h *Handler) historyQuery(ctx context.Context, _ Role, params json.RawMessage) (interface{}, error) {
	p, err := decode[historyParams](params)
	if err != nil {
		return nil, err
	}
	switch p.Kind {
	case "", "distributions":
		// Serve from the hot cache first; fall back to the archive for
		// larger windows.
		if h.recent != nil && (p.Limit <= 0 || p.Limit <= h.recent.Len()) {
			return h.recent.Latest(p.Limit), nil
		}
		if h.archive == nil {
			if h.recent == nil {
				return []events.Distribution{}, nil
			}
			return h.recent.Latest(p.Limit), nil
		}
		return h.archive.Distributions(ctx, p.Limit)
	case "claims":
		if h.archive == nil {
			return nil, errors.New("history archive not configured")
		}
		return h.archive.ClaimsByWallet(ctx, p.Wallet, p.Limit)
	case "burns":
		if h.archive == nil {
			return nil, errors.New("history archive not configured")
		}
		return h.archive.Burns(ctx, p.Limit)
	default:
		return nil, fmt.Errorf("unknown history kind %q", p.Kind)
	}
}

type refParams struct {
	Ref string `json:"ref"`
}

func (h *Handler) adminSetOracle(ctx context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[refParams](params)
	if err != nil {
		return nil, err
	}
	if h.resolver == nil {
		return nil, errors.New("collaborator resolver not configured")
	}
	oracle, err := h.resolver.ResolveGovernanceOracle(p.Ref)
	if err != nil {
		return nil, err
	}
	h.rates.SetOracle(oracle)
	h.configChanged("governance_oracle", "", p.Ref)
	return okResult(), nil
}

func (h *Handler) adminSetNetworkCaller(_ context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[struct {
		Token string `json:"token"`
	}](params)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.auth.NetworkToken = p.Token
	h.mu.Unlock()
	h.configChanged("network_caller", "", "rotated")
	return okResult(), nil
}

func (h *Handler) adminSetPriceProvider(_ context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[refParams](params)
	if err != nil {
		return nil, err
	}
	if h.resolver == nil {
		return nil, errors.New("collaborator resolver not configured")
	}
	provider, err := h.resolver.ResolvePriceProvider(p.Ref)
	if err != nil {
		return nil, err
	}
	h.burnCtrl.SetProvider(provider)
	h.configChanged("price_provider", "", p.Ref)
	return okResult(), nil
}

func (h *Handler) adminSetSanityOracle(_ context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[refParams](params)
	if err != nil {
		return nil, err
	}
	if h.resolver == nil {
		return nil, errors.New("collaborator resolver not configured")
	}
	oracle, err := h.resolver.ResolveSanityOracle(p.Ref)
	if err != nil {
		return nil, err
	}
	old := h.burnCtrl.Sanity().ActiveName()
	h.burnCtrl.SwapSanityOracle(p.Ref, oracle)
	h.configChanged("sanity_oracle", old, p.Ref)
	return okResult(), nil
}

func (h *Handler) adminSetBurnCap(_ context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[struct {
		Cap string `json:"cap"`
	}](params)
	if err != nil {
		return nil, err
	}
	maxPerCall, err := parseAmt(p.Cap)
	if err != nil {
		return nil, err
	}
	old := h.burnCtrl.Snapshot().MaxPerCall
	h.burnCtrl.SetMaxPerCall(maxPerCall)
	h.configChanged("burn_cap", old.String(), maxPerCall.String())
	return okResult(), nil
}

func (h *Handler) adminSetBurnInterval(_ context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[struct {
		Interval string `json:"interval"`
	}](params)
	if err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval %q: %w", p.Interval, err)
	}
	old := h.burnCtrl.Snapshot().MinInterval
	h.burnCtrl.SetMinInterval(d)
	h.configChanged("burn_interval", old.String(), d.String())
	return okResult(), nil
}

func (h *Handler) adminSetBurnCallers(_ context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[struct {
		Callers []string `json:"callers"`
	}](params)
	if err != nil {
		return nil, err
	}
	h.burnCtrl.SetCallers(p.Callers)
	h.configChanged("burn_callers", "", strconv.Itoa(len(p.Callers))+" entries")
	return okResult(), nil
}

func (h *Handler) adminSetBurnDeviation(_ context.Context, role Role, params json.RawMessage) (interface{}, error) {
	if err := requireRole(role, RoleAdmin); err != nil {
		return nil, err
	}
	p, err := decode[struct {
		Bps uint32 `json:"bps"`
	}](params)
	if err != nil {
		return nil, err
	}
	old := h.burnCtrl.Snapshot().MaxDeviationBps
	h.burnCtrl.SetMaxDeviationBps(p.Bps)
	h.configChanged("burn_deviation_bps", strconv.FormatUint(uint64(old), 10), strconv.FormatUint(uint64(p.Bps), 10))
	return okResult(), nil
}

func (h *Handler) configChanged(param, old, next string) {
	h.log.WithFields(logrus.Fields{"parameter": param, "new": next}).Info("config changed")
	h.pub.PublishConfigChange(events.ConfigChange{
		Parameter: param,
		Old:       old,
		New:       next,
		Time:      h.clock.Now(),
	})
}

func okResult() map[string]interface{} {
	return map[string]interface{}{"status": "ok"}
}
