package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propertyBank/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
	id               TEXT PRIMARY KEY,
	registry         TEXT        NOT NULL,
	token_id         NUMERIC     NOT NULL,
	seller           TEXT        NOT NULL,
	buyer            TEXT        NOT NULL,
	price            NUMERIC     NOT NULL,
	royalty_receiver TEXT        NOT NULL,
	royalty_amount   NUMERIC     NOT NULL,
	operator         TEXT        NOT NULL,
	settled_at       TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS settlements_token_idx ON settlements (registry, token_id);

CREATE TABLE IF NOT EXISTS staking_pools (
	asset           TEXT PRIMARY KEY,
	price_feed      TEXT        NOT NULL,
	weight          BIGINT      NOT NULL,
	decimals        SMALLINT    NOT NULL,
	total_staked    NUMERIC     NOT NULL,
	unit_rate       NUMERIC     NOT NULL DEFAULT 0,
	rate            NUMERIC     NOT NULL,
	acc_per_unit    NUMERIC     NOT NULL,
	last_checkpoint TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE staking_pools ADD COLUMN IF NOT EXISTS unit_rate NUMERIC NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS stake_positions (
	staker          TEXT        NOT NULL,
	pool            TEXT        NOT NULL,
	principal       NUMERIC     NOT NULL,
	accrued_yield   NUMERIC     NOT NULL,
	acc_checkpoint  NUMERIC     NOT NULL,
	last_checkpoint TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (staker, pool)
);
`

// Store provides Postgres persistence for the settlement audit trail and
// staking snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutSettlements inserts settlement records. Records are immutable, so a
// replayed id is ignored.
func (s *Store) PutSettlements(ctx context.Context, records []model.SettlementRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO settlements (
				id, registry, token_id, seller, buyer, price, royalty_receiver, royalty_amount, operator, settled_at
			) VALUES ($1, $2, $3::numeric, $4, $5, $6::numeric, $7, $8::numeric, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`,
			r.ID,
			r.Registry.Hex(),
			numeric(r.TokenID),
			r.Seller.Hex(),
			r.Buyer.Hex(),
			numeric(r.Price),
			r.RoyaltyReceiver.Hex(),
			numeric(r.RoyaltyAmount),
			r.Operator.Hex(),
			r.Timestamp,
		)
	}
	return sendBatch(ctx, s.pool, batch, len(records))
}

// UpsertPools inserts or updates pool snapshots.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO staking_pools (
				asset, price_feed, weight, decimals, total_staked, unit_rate, rate, acc_per_unit, last_checkpoint, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9, $10, now())
			ON CONFLICT (asset)
			DO UPDATE SET
				price_feed = EXCLUDED.price_feed,
				weight = EXCLUDED.weight,
				total_staked = EXCLUDED.total_staked,
				unit_rate = EXCLUDED.unit_rate,
				rate = EXCLUDED.rate,
				acc_per_unit = EXCLUDED.acc_per_unit,
				last_checkpoint = EXCLUDED.last_checkpoint,
				updated_at = now()
		`,
			p.Asset.Hex(),
			p.PriceFeed.Hex(),
			int64(p.Weight),
			int16(p.Decimals),
			numeric(p.TotalStaked),
			numeric(p.UnitRate),
			numeric(p.Rate),
			numeric(p.AccPerUnit),
			p.LastCheckpoint,
			p.CreatedAt,
		)
	}
	return sendBatch(ctx, s.pool, batch, len(pools))
}

// ReplacePositions makes stake_positions match the snapshot: closed
// positions missing from it are deleted and the rest are upserted, in one
// transaction.
func (s *Store) ReplacePositions(ctx context.Context, positions []model.StakePosition) error {
	stakers, pools := positionKeys(positions)
	batch := &pgx.Batch{}
	batch.Queue(`
		DELETE FROM stake_positions p
		WHERE NOT EXISTS (
			SELECT 1 FROM unnest($1::text[], $2::text[]) AS k(staker, pool)
			WHERE k.staker = p.staker AND k.pool = p.pool
		)
	`, stakers, pools)
	for _, p := range positions {
		batch.Queue(`
			INSERT INTO stake_positions (
				staker, pool, principal, accrued_yield, acc_checkpoint, last_checkpoint, updated_at
			) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, now())
			ON CONFLICT (staker, pool)
			DO UPDATE SET
				principal = EXCLUDED.principal,
				accrued_yield = EXCLUDED.accrued_yield,
				acc_checkpoint = EXCLUDED.acc_checkpoint,
				last_checkpoint = EXCLUDED.last_checkpoint,
				updated_at = now()
		`,
			p.Staker.Hex(),
			p.Pool.Hex(),
			numeric(p.Principal),
			numeric(p.AccruedYield),
			numeric(p.AccCheckpoint),
			p.LastCheckpoint,
		)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return sendBatch(ctx, tx, batch, len(positions)+1)
	})
}

// positionKeys returns the parallel staker and pool columns of positions.
func positionKeys(positions []model.StakePosition) (stakers, pools []string) {
	stakers = make([]string, 0, len(positions))
	pools = make([]string, 0, len(positions))
	for _, p := range positions {
		stakers = append(stakers, p.Staker.Hex())
		pools = append(pools, p.Pool.Hex())
	}
	return stakers, pools
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func sendBatch(ctx context.Context, conn batchSender, batch *pgx.Batch, n int) error {
	br := conn.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
