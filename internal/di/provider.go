package di

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/dexfoundry/feesplitd/internal/config"
	"github.com/dexfoundry/feesplitd/internal/core/burn"
	"github.com/dexfoundry/feesplitd/internal/core/claim"
	"github.com/dexfoundry/feesplitd/internal/core/engine"
	"github.com/dexfoundry/feesplitd/internal/core/ledger"
	"github.com/dexfoundry/feesplitd/internal/core/rates"
	"github.com/dexfoundry/feesplitd/internal/events"
	"github.com/dexfoundry/feesplitd/internal/metrics"
	"github.com/dexfoundry/feesplitd/internal/recent"
	"github.com/dexfoundry/feesplitd/internal/rpc"
	"github.com/dexfoundry/feesplitd/internal/schedule"
	"github.com/dexfoundry/feesplitd/internal/storage/database/pebbledb"
	"github.com/dexfoundry/feesplitd/internal/storage/history"
	snapstore "github.com/dexfoundry/feesplitd/internal/storage/snapshot"
)

// archiveTimeout bounds each background archive write.
const archiveTimeout = 10 * time.Second

// Provider configures and registers services in the container.
type Provider struct {
	container *Container
	config    *config.Config
	clock     clockwork.Clock
	log       *logrus.Entry
}

// NewProvider creates a new service provider.
func NewProvider(container *Container, cfg *config.Config, clock clockwork.Clock, log *logrus.Entry) *Provider {
	return &Provider{
		container: container,
		config:    cfg,
		clock:     clock,
		log:       log,
	}
}

// RegisterAll registers all services.
func (p *Provider) RegisterAll() error {
	p.container.Register(ServiceConfig, p.config)
	p.container.Register(ServicePublisher, events.NewPublisher())

	p.registerStorageBuilders()
	p.registerCoreBuilders()
	p.registerSurfaceBuilders()

	return nil
}

// registerStorageBuilders registers storage service builders.
func (p *Provider) registerStorageBuilders() {
	p.container.RegisterBuilder(ServiceDatabase, func(c *Container) (interface{}, error) {
		if !p.config.Snapshot.Enabled {
			return nil, nil
		}
		return pebbledb.Open(p.config.Snapshot.Path)
	})

	p.container.RegisterBuilder(ServiceSnapshots, func(c *Container) (interface{}, error) {
		db, err := p.Database()
		if err != nil {
			return nil, err
		}
		if db == nil {
			return nil, nil
		}
		compr, err := snapstore.ForName(p.config.Snapshot.Compressor)
		if err != nil {
			return nil, err
		}
		return snapstore.NewStore(db, compr), nil
	})

	p.container.RegisterBuilder(ServiceHistory, func(c *Container) (interface{}, error) {
		return history.Open(context.Background(), p.config.History)
	})
}

// registerCoreBuilders registers the distribution core.
func (p *Provider) registerCoreBuilders() {
	p.container.RegisterBuilder(ServiceRates, func(c *Container) (interface{}, error) {
		bootstrap := p.config.Rates.Bootstrap(p.clock.Now())
		return rates.NewCache(p.clock, nil, bootstrap)
	})

	p.container.RegisterBuilder(ServiceEngine, func(c *Container) (interface{}, error) {
		rc, err := p.Rates()
		if err != nil {
			return nil, err
		}
		pub, err := p.Publisher()
		if err != nil {
			return nil, err
		}

		book := ledger.New()
		var seq uint64
		var treasury *engine.Treasury

		snaps, err := p.Snapshots()
		if err != nil {
			return nil, err
		}
		if snaps != nil {
			rec, err := snaps.Latest(context.Background())
			switch {
			case err == nil:
				if err := book.Restore(rec.State); err != nil {
					return nil, err
				}
				seq = rec.Seq
				treasury = engine.NewTreasury(rec.Held)
				p.log.WithFields(logrus.Fields{
					"seq":  rec.Seq,
					"held": rec.Held,
				}).Info("restored ledger from snapshot")
			case errors.Is(err, snapstore.ErrNoSnapshot):
				p.log.Info("no snapshot found, starting with an empty ledger")
			default:
				return nil, err
			}
		}
		if treasury == nil {
			treasury = engine.NewTreasury(0)
		}

		eng := engine.New(engine.NewGuard(), book, rc, treasury, pub, p.clock, p.config.Asset, p.log)
		eng.SetSeq(seq)
		return eng, nil
	})

	p.container.RegisterBuilder(ServiceBurn, func(c *Container) (interface{}, error) {
		eng, err := p.Engine()
		if err != nil {
			return nil, err
		}
		pub, err := p.Publisher()
		if err != nil {
			return nil, err
		}
		return burn.NewController(p.config.Burn.Controller(), eng, nil, nil, nil, pub, p.clock, p.log), nil
	})

	p.container.RegisterBuilder(ServiceClaims, func(c *Container) (interface{}, error) {
		eng, err := p.Engine()
		if err != nil {
			return nil, err
		}
		pub, err := p.Publisher()
		if err != nil {
			return nil, err
		}
		return claim.NewHandlers(eng, nil, pub, p.clock, p.log), nil
	})
}

// registerSurfaceBuilders registers the RPC surface, observability and
// the scheduler.
func (p *Provider) registerSurfaceBuilders() {
	p.container.RegisterBuilder(ServiceRecent, func(c *Container) (interface{}, error) {
		return recent.NewCache(p.config.Recent.Size)
	})

	p.container.RegisterBuilder(ServiceMetrics, func(c *Container) (interface{}, error) {
		return metrics.New(), nil
	})

	p.container.RegisterBuilder(ServiceHub, func(c *Container) (interface{}, error) {
		return rpc.NewHub(p.log), nil
	})

	p.container.RegisterBuilder(ServiceRPCServer, func(c *Container) (interface{}, error) {
		eng, err := p.Engine()
		if err != nil {
			return nil, err
		}
		burnCtrl, err := p.Burn()
		if err != nil {
			return nil, err
		}
		claims, err := p.Claims()
		if err != nil {
			return nil, err
		}
		rc, err := p.Rates()
		if err != nil {
			return nil, err
		}
		rec, err := p.Recent()
		if err != nil {
			return nil, err
		}
		archive, err := p.History()
		if err != nil {
			return nil, err
		}
		pub, err := p.Publisher()
		if err != nil {
			return nil, err
		}
		hub, err := p.Hub()
		if err != nil {
			return nil, err
		}
		m, err := p.Metrics()
		if err != nil {
			return nil, err
		}

		auth := rpc.Auth{
			AdminToken:   p.config.RPC.AdminToken,
			NetworkToken: p.config.RPC.NetworkToken,
		}
		handler := rpc.NewHandler(auth, eng, burnCtrl, claims, rc, rec, archive, nil, pub, p.clock, p.log)
		srv := rpc.NewServer(p.config.RPC.Addr, handler, hub, m.Handler(), p.log)
		srv.SetRejectHook(func(reason string) {
			m.RejectedOps.WithLabelValues(reason).Inc()
		})
		return srv, nil
	})

	p.container.RegisterBuilder(ServiceScheduler, func(c *Container) (interface{}, error) {
		eng, err := p.Engine()
		if err != nil {
			return nil, err
		}
		rc, err := p.Rates()
		if err != nil {
			return nil, err
		}
		burnCtrl, err := p.Burn()
		if err != nil {
			return nil, err
		}
		snaps, err := p.Snapshots()
		if err != nil {
			return nil, err
		}
		return schedule.New(p.config.Schedule, eng, rc, burnCtrl, snaps, p.log), nil
	})
}

// WireEvents connects the event publisher to every subscriber: the
// websocket hub, the history archive, the metrics collectors and the
// recent-distribution cache. Call it after RegisterAll, before serving.
func (p *Provider) WireEvents() error {
	pub, err := p.Publisher()
	if err != nil {
		return err
	}
	eng, err := p.Engine()
	if err != nil {
		return err
	}
	rc, err := p.Rates()
	if err != nil {
		return err
	}
	rec, err := p.Recent()
	if err != nil {
		return err
	}
	archive, err := p.History()
	if err != nil {
		return err
	}
	hub, err := p.Hub()
	if err != nil {
		return err
	}
	m, err := p.Metrics()
	if err != nil {
		return err
	}
	snaps, err := p.Snapshots()
	if err != nil {
		return err
	}

	gauges := func() {
		m.TotalOwed.Set(float64(eng.Ledger().TotalOwed()))
		m.TreasuryHeld.Set(float64(eng.Treasury().Held()))
	}
	gauges()

	// Write-through persistence: every mutation boundary saves a
	// snapshot so a crash between cron flushes loses nothing.
	save := func() {
		if snaps == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		rec := snapstore.Record{
			Seq:     eng.Seq(),
			Held:    eng.Treasury().Held(),
			State:   eng.Ledger().Snapshot(),
			SavedAt: p.clock.Now(),
		}
		if err := snaps.Save(ctx, rec); err != nil {
			p.log.WithError(err).Warn("snapshot save failed")
		}
	}

	record := func(write func(ctx context.Context) error, kind string) {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			p.log.WithError(err).WithField("kind", kind).Warn("history archive write failed")
		}
	}

	pub.SetHooks(&events.Hooks{
		OnDistribution: func(d events.Distribution) {
			rec.Add(d)
			hub.Broadcast("distribution", d)
			m.FeesProcessed.Inc()
			m.FeeVolume.Add(float64(d.FeeAmount))
			gauges()
			save()
			record(func(ctx context.Context) error { return archive.RecordDistribution(ctx, d) }, "distribution")
		},
		OnRatesUpdate: func(u events.RatesUpdate) {
			hub.Broadcast("rates_update", u)
			m.RatesRefreshes.Inc()
		},
		OnBurn: func(b events.BurnRecord) {
			hub.Broadcast("burn", b)
			if !b.BurnFailed {
				m.BurnsExecuted.Inc()
			}
			m.BurnVolume.Add(float64(b.Released))
			gauges()
			save()
			record(func(ctx context.Context) error { return archive.RecordBurn(ctx, b) }, "burn")
		},
		OnForfeiture: func(f events.Forfeiture) {
			hub.Broadcast("forfeiture", f)
			m.Forfeitures.Inc()
			gauges()
			save()
			record(func(ctx context.Context) error { return archive.RecordForfeiture(ctx, f) }, "forfeiture")
		},
		OnClaimPaid: func(cp events.ClaimPaid) {
			hub.Broadcast("claim_paid", cp)
			m.ClaimsPaid.WithLabelValues(cp.Kind).Inc()
			m.ClaimVolume.WithLabelValues(cp.Kind).Add(float64(cp.Amount))
			gauges()
			save()
			record(func(ctx context.Context) error { return archive.RecordClaim(ctx, cp) }, "claim")
		},
		OnConfigChange: func(cc events.ConfigChange) {
			hub.Broadcast("config_change", cc)
		},
	})

	rc.OnUpdate(func(rs rates.RateSet) {
		pub.PublishRatesUpdate(events.RatesUpdate{
			Epoch:     rs.Epoch,
			BurnBps:   rs.BurnBps,
			RewardBps: rs.RewardBps,
			RebateBps: rs.RebateBps,
			Expiry:    rs.Expiry,
		})
	})

	return nil
}

// Typed accessors.

// Publisher returns the event publisher.
func (p *Provider) Publisher() (*events.Publisher, error) {
	svc, err := p.container.Get(ServicePublisher)
	if err != nil {
		return nil, err
	}
	return svc.(*events.Publisher), nil
}

// Database returns the pebble database, nil when snapshots are
// disabled.
func (p *Provider) Database() (*pebbledb.DB, error) {
	svc, err := p.container.Get(ServiceDatabase)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc.(*pebbledb.DB), nil
}

// Snapshots returns the snapshot store, nil when snapshots are
// disabled.
func (p *Provider) Snapshots() (*snapstore.Store, error) {
	svc, err := p.container.Get(ServiceSnapshots)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc.(*snapstore.Store), nil
}

// History returns the history archive.
func (p *Provider) History() (*history.Archive, error) {
	svc, err := p.container.Get(ServiceHistory)
	if err != nil {
		return nil, err
	}
	return svc.(*history.Archive), nil
}

// Rates returns the rate cache.
func (p *Provider) Rates() (*rates.Cache, error) {
	svc, err := p.container.Get(ServiceRates)
	if err != nil {
		return nil, err
	}
	return svc.(*rates.Cache), nil
}

// Engine returns the distribution engine.
func (p *Provider) Engine() (*engine.Engine, error) {
	svc, err := p.container.Get(ServiceEngine)
	if err != nil {
		return nil, err
	}
	return svc.(*engine.Engine), nil
}

// Burn returns the burn controller.
func (p *Provider) Burn() (*burn.Controller, error) {
	svc, err := p.container.Get(ServiceBurn)
	if err != nil {
		return nil, err
	}
	return svc.(*burn.Controller), nil
}

// Claims returns the claim handlers.
func (p *Provider) Claims() (*claim.Handlers, error) {
	svc, err := p.container.Get(ServiceClaims)
	if err != nil {
		return nil, err
	}
	return svc.(*claim.Handlers), nil
}

// Recent returns the recent-distribution cache.
func (p *Provider) Recent() (*recent.Cache, error) {
	svc, err := p.container.Get(ServiceRecent)
	if err != nil {
		return nil, err
	}
	return svc.(*recent.Cache), nil
}

// Metrics returns the Prometheus collectors.
func (p *Provider) Metrics() (*metrics.Metrics, error) {
	svc, err := p.container.Get(ServiceMetrics)
	if err != nil {
		return nil, err
	}
	return svc.(*metrics.Metrics), nil
}

// Hub returns the websocket broadcast hub.
func (p *Provider) Hub() (*rpc.Hub, error) {
	svc, err := p.container.Get(ServiceHub)
	if err != nil {
		return nil, err
	}
	return svc.(*rpc.Hub), nil
}

// RPCServer returns the HTTP server.
func (p *Provider) RPCServer() (*rpc.Server, error) {
	svc, err := p.container.Get(ServiceRPCServer)
	if err != nil {
		return nil, err
	}
	return svc.(*rpc.Server), nil
}

// Scheduler returns the cron scheduler.
func (p *Provider) Scheduler() (*schedule.Scheduler, error) {
	svc, err := p.container.Get(ServiceScheduler)
	if err != nil {
		return nil, err
	}
	return svc.(*schedule.Scheduler), nil
}

// GetConfig returns the configuration.
func (p *Provider) GetConfig() *config.Config {
	return p.config
}
