// Package schedule runs the daemon's periodic maintenance: rate
// refreshes, burn release attempts, ledger snapshots and the
// epoch-forfeiture sweep.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dexfoundry/feesplitd/internal/core/burn"
	"github.com/dexfoundry/feesplitd/internal/core/engine"
	"github.com/dexfoundry/feesplitd/internal/core/rates"
	"github.com/dexfoundry/feesplitd/internal/storage/snapshot"
)

// Config carries the cron expressions for each job. An empty expression
// disables that job.
type Config struct {
	RatesRefresh string `json:"rates_refresh" toml:"rates_refresh" mapstructure:"rates_refresh"`
	BurnAttempt  string `json:"burn_attempt" toml:"burn_attempt" mapstructure:"burn_attempt"`
	Snapshot     string `json:"snapshot" toml:"snapshot" mapstructure:"snapshot"`
	ForfeitSweep string `json:"forfeit_sweep" toml:"forfeit_sweep" mapstructure:"forfeit_sweep"`

	// BurnCaller is the identity the scheduler presents to the burn
	// allowlist.
	BurnCaller string `json:"burn_caller" toml:"burn_caller" mapstructure:"burn_caller"`
}

// NewConfig returns conservative defaults.
func NewConfig() Config {
	return Config{
		RatesRefresh: "@every 5m",
		BurnAttempt:  "@every 1h",
		Snapshot:     "@every 1m",
		ForfeitSweep: "@every 6h",
		BurnCaller:   "scheduler",
	}
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cfg   Config
	cron  *cron.Cron
	eng   *engine.Engine
	rates *rates.Cache
	burns *burn.Controller
	snaps *snapshot.Store
	log   *logrus.Entry
}

// New builds the scheduler. The snapshot store may be nil to disable
// persistence.
func New(cfg Config, eng *engine.Engine, rc *rates.Cache, burns *burn.Controller, snaps *snapshot.Store, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		cron:  cron.New(),
		eng:   eng,
		rates: rc,
		burns: burns,
		snaps: snaps,
		log:   log,
	}
}

// Start registers the enabled jobs and starts the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		expr string
		run  func()
	}{
		{"rates_refresh", s.cfg.RatesRefresh, func() { s.refreshRates(ctx) }},
		{"burn_attempt", s.cfg.BurnAttempt, func() { s.attemptBurn(ctx) }},
		{"snapshot", s.cfg.Snapshot, func() { s.saveSnapshot(ctx) }},
		{"forfeit_sweep", s.cfg.ForfeitSweep, func() { s.sweepForfeitures(ctx) }},
	}
	for _, job := range jobs {
		if job.expr == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.expr, job.run); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.name, job.expr, err)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// refreshRates forces a cache consultation so an expired rate set is
// renewed before the next fee event needs it.
func (s *Scheduler) refreshRates(ctx context.Context) {
	if _, err := s.rates.Current(ctx); err != nil {
		s.log.WithError(err).Warn("scheduled rates refresh failed")
	}
}

// attemptBurn tries a release, tolerating the gate rejections that are
// expected in steady state.
func (s *Scheduler) attemptBurn(ctx context.Context) {
	_, err := s.burns.ReleaseForBurn(ctx, s.cfg.BurnCaller)
	switch {
	case err == nil:
	case errors.Is(err, burn.ErrTooSoon),
		errors.Is(err, burn.ErrNothingToBurn),
		errors.Is(err, burn.ErrNotConfigured):
		s.log.WithError(err).Debug("scheduled burn skipped")
	default:
		s.log.WithError(err).Warn("scheduled burn failed")
	}
}

// saveSnapshot persists current ledger state.
func (s *Scheduler) saveSnapshot(ctx context.Context) {
	if s.snaps == nil {
		return
	}
	rec := snapshot.Record{
		Seq:     s.eng.Seq(),
		Held:    s.eng.Treasury().Held(),
		State:   s.eng.Ledger().Snapshot(),
		SavedAt: s.eng.Now(),
	}
	if err := s.snaps.Save(ctx, rec); err != nil {
		s.log.WithError(err).Error("snapshot save failed")
	}
}

// sweepForfeitures asks the governance oracle which epochs to reclaim.
func (s *Scheduler) sweepForfeitures(ctx context.Context) {
	oracle := s.rates.Oracle()
	if oracle == nil {
		return
	}
	current := s.rates.Cached().Epoch
	for _, epoch := range s.eng.Ledger().RewardEpochs() {
		if epoch >= current {
			continue
		}
		if s.eng.Ledger().RewardInfo(epoch).Unpaid().IsZero() {
			continue
		}
		forfeit, err := oracle.ShouldForfeitEpoch(ctx, epoch)
		if err != nil {
			s.log.WithError(err).WithField("epoch", epoch).Warn("forfeit query failed")
			continue
		}
		if !forfeit {
			continue
		}
		if _, err := s.eng.ForfeitEpoch(epoch); err != nil {
			s.log.WithError(err).WithField("epoch", epoch).Warn("forfeit failed")
		}
	}
}
