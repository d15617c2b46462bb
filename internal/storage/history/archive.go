// Package history archives every distribution, burn, claim and
// forfeiture in a relational store, embedded sqlite by default or
// postgres for shared deployments. Amounts are stored as decimal
// strings so the full unsigned range survives both backends.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/dexfoundry/feesplitd/internal/core/amount"
	"github.com/dexfoundry/feesplitd/internal/events"
)

// Archive writes event records to the relational backend.
type Archive struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured backend and ensures the schema.
func Open(ctx context.Context, cfg Config) (*Archive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// sqlite tolerates a single writer.
		db.SetMaxOpenConns(1)
	}
	a := &Archive{db: db, driver: cfg.Driver}
	if err := a.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// NewWithDB wraps an existing connection, for tests.
func NewWithDB(ctx context.Context, db *sql.DB, driver string) (*Archive, error) {
	a := &Archive{db: db, driver: driver}
	if err := a.migrate(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Close closes the underlying connection.
func (a *Archive) Close() error { return a.db.Close() }

// autoID is the driver-specific autoincrement primary key column.
func (a *Archive) autoID() string {
	if a.driver == DriverPostgres {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (a *Archive) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS distributions (
			seq BIGINT PRIMARY KEY,
			epoch BIGINT NOT NULL,
			asset TEXT NOT NULL,
			fee_amount TEXT NOT NULL,
			platform_fee TEXT NOT NULL,
			burn_amount TEXT NOT NULL,
			reward_amount TEXT NOT NULL,
			rebate_amount TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS burns (
			%s,
			released TEXT NOT NULL,
			burned TEXT NOT NULL,
			quote_rate BIGINT NOT NULL,
			sanity_rate BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, a.autoID()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS claims (
			%s,
			kind TEXT NOT NULL,
			wallet TEXT NOT NULL,
			epoch BIGINT NOT NULL,
			amount TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, a.autoID()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS forfeitures (
			%s,
			epoch BIGINT NOT NULL,
			returned TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, a.autoID()),
		`CREATE INDEX IF NOT EXISTS idx_claims_wallet ON claims (wallet)`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history migrate: %w", err)
		}
	}
	return nil
}

// RecordDistribution archives one fee split.
func (a *Archive) RecordDistribution(ctx context.Context, d events.Distribution) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO distributions
		 (seq, epoch, asset, fee_amount, platform_fee, burn_amount, reward_amount, rebate_amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		int64(d.Seq), int64(d.Epoch), d.Asset,
		fmtAmt(d.FeeAmount), fmtAmt(d.PlatformFee), fmtAmt(d.BurnAmount),
		fmtAmt(d.RewardAmount), fmtAmt(d.RebateAmount), d.Time.UTC())
	if err != nil {
		return fmt.Errorf("record distribution %d: %w", d.Seq, err)
	}
	return nil
}

// RecordBurn archives one burn release.
func (a *Archive) RecordBurn(ctx context.Context, b events.BurnRecord) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO burns (released, burned, quote_rate, sanity_rate, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		fmtAmt(b.Released), fmtAmt(b.Burned), int64(b.QuoteRate), int64(b.SanityRate), b.Time.UTC())
	if err != nil {
		return fmt.Errorf("record burn: %w", err)
	}
	return nil
}

// RecordClaim archives one payout.
func (a *Archive) RecordClaim(ctx context.Context, c events.ClaimPaid) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO claims (kind, wallet, epoch, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.Kind, c.Wallet, int64(c.Epoch), fmtAmt(c.Amount), c.Time.UTC())
	if err != nil {
		return fmt.Errorf("record claim: %w", err)
	}
	return nil
}

// RecordForfeiture archives one reclaimed epoch.
func (a *Archive) RecordForfeiture(ctx context.Context, f events.Forfeiture) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO forfeitures (epoch, returned, created_at) VALUES ($1, $2, $3)`,
		int64(f.Epoch), fmtAmt(f.Returned), f.Time.UTC())
	if err != nil {
		return fmt.Errorf("record forfeiture: %w", err)
	}
	return nil
}

// Distributions returns archived distributions, newest first.
func (a *Archive) Distributions(ctx context.Context, limit int) ([]events.Distribution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT seq, epoch, asset, fee_amount, platform_fee, burn_amount, reward_amount, rebate_amount, created_at
		 FROM distributions ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query distributions: %w", err)
	}
	defer rows.Close()

	var out []events.Distribution
	for rows.Next() {
		var (
			d                                    events.Distribution
			seq, epoch                           int64
			fee, platform, burn, reward, rebate  string
		)
		if err := rows.Scan(&seq, &epoch, &d.Asset, &fee, &platform, &burn, &reward, &rebate, &d.Time); err != nil {
			return nil, err
		}
		d.Seq, d.Epoch = uint64(seq), uint64(epoch)
		if d.FeeAmount, err = parseAmt(fee); err != nil {
			return nil, err
		}
		if d.PlatformFee, err = parseAmt(platform); err != nil {
			return nil, err
		}
		if d.BurnAmount, err = parseAmt(burn); err != nil {
			return nil, err
		}
		if d.RewardAmount, err = parseAmt(reward); err != nil {
			return nil, err
		}
		if d.RebateAmount, err = parseAmt(rebate); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ClaimsByWallet returns a wallet's archived payouts, newest first.
func (a *Archive) ClaimsByWallet(ctx context.Context, wallet string, limit int) ([]events.ClaimPaid, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT kind, wallet, epoch, amount, created_at
		 FROM claims WHERE wallet = $1 ORDER BY id DESC LIMIT $2`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var out []events.ClaimPaid
	for rows.Next() {
		var (
			c     events.ClaimPaid
			epoch int64
			amt   string
		)
		if err := rows.Scan(&c.Kind, &c.Wallet, &epoch, &amt, &c.Time); err != nil {
			return nil, err
		}
		c.Epoch = uint64(epoch)
		if c.Amount, err = parseAmt(amt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Burns returns archived burn releases, newest first.
func (a *Archive) Burns(ctx context.Context, limit int) ([]events.BurnRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT released, burned, quote_rate, sanity_rate, created_at
		 FROM burns ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query burns: %w", err)
	}
	defer rows.Close()

	var out []events.BurnRecord
	for rows.Next() {
		var (
			b                  events.BurnRecord
			released, burned   string
			quote, sanity      int64
		)
		if err := rows.Scan(&released, &burned, &quote, &sanity, &b.Time); err != nil {
			return nil, err
		}
		b.QuoteRate, b.SanityRate = uint64(quote), uint64(sanity)
		if b.Released, err = parseAmt(released); err != nil {
			return nil, err
		}
		if b.Burned, err = parseAmt(burned); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func fmtAmt(a amount.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}

func parseAmt(s string) (amount.Amount, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse archived amount %q: %w", s, err)
	}
	return amount.Amount(v), nil
}
