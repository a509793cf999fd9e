package staking

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"propertyBank/internal/access"
	"propertyBank/internal/ledger"
	"propertyBank/internal/model"
	"propertyBank/internal/oracle"
	"propertyBank/internal/txn"
)

const DefaultBaseYieldPercent = 100

type Config struct {
	// Address is the custody account holding staked principal and the
	// reward token float.
	Address          common.Address
	RewardFeed       common.Address
	BaseYieldPercent uint64
	NativeSymbol     string
	// MaxPriceAge rejects older feed answers. Zero disables the check.
	MaxPriceAge time.Duration
}

type positionKey struct {
	staker common.Address
	pool   common.Address
}

// Manager runs the staking pools and pays yield in the reward token.
type Manager struct {
	cfg    Config
	roles  access.RoleChecker
	prices oracle.Adapter
	reward ledger.Fungible
	native ledger.Native
	assets *ledger.Directory
	coord  *txn.Coordinator
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	pools     map[common.Address]model.Pool
	order     []common.Address
	positions map[positionKey]model.StakePosition
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(
	cfg Config,
	roles access.RoleChecker,
	prices oracle.Adapter,
	reward ledger.Fungible,
	native ledger.Native,
	assets *ledger.Directory,
	coord *txn.Coordinator,
	logger *zap.Logger,
	opts ...Option,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if coord == nil {
		coord = txn.NewCoordinator(logger)
	}
	if assets == nil {
		assets = ledger.NewDirectory()
	}
	if cfg.BaseYieldPercent == 0 {
		cfg.BaseYieldPercent = DefaultBaseYieldPercent
	}
	m := &Manager{
		cfg:       cfg,
		roles:     roles,
		prices:    prices,
		reward:    reward,
		native:    native,
		assets:    assets,
		coord:     coord,
		logger:    logger,
		now:       time.Now,
		pools:     make(map[common.Address]model.Pool),
		positions: make(map[positionKey]model.StakePosition),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Address() common.Address {
	return m.cfg.Address
}

// AddPool opens a pool for asset priced by feed. The native sentinel opens
// the native-asset pool. Existing pools are settled at their old rates up to
// now and renormalised to the new pool set; the new pool earns nothing until
// its first checkpoint reads prices.
func (m *Manager) AddPool(ctx context.Context, caller, asset, feed common.Address, weight uint64) error {
	err := m.coord.Do(ctx, "add_pool", func(ctx context.Context) error {
		if err := access.Require(m.roles, caller, model.RoleAdmin); err != nil {
			return err
		}
		if weight == 0 {
			return fmt.Errorf("%w: pool weight must be positive", model.ErrZeroAmount)
		}
		if _, exists := m.pool(asset); exists {
			return fmt.Errorf("%w: asset %s", model.ErrDuplicatePool, asset.Hex())
		}
		if (feed == common.Address{}) {
			return fmt.Errorf("%w: pool %s has no price feed", model.ErrInvalidAsset, asset.Hex())
		}

		decimals := model.NativeDecimals
		if asset != model.NativeAsset {
			token, ok := m.assets.Lookup(asset)
			if !ok {
				return fmt.Errorf("%w: unknown fungible asset %s", model.ErrInvalidAsset, asset.Hex())
			}
			decimals = token.Decimals()
		}

		now := m.now().UTC()
		m.putPool(ctx, model.Pool{
			Asset:          asset,
			PriceFeed:      feed,
			Weight:         weight,
			Decimals:       decimals,
			CreatedAt:      now,
			TotalStaked:    big.NewInt(0),
			UnitRate:       big.NewInt(0),
			Rate:           big.NewInt(0),
			AccPerUnit:     big.NewInt(0),
			LastCheckpoint: now,
		})
		m.reweight(ctx, now)
		return nil
	})
	if err != nil {
		m.logger.Debug("add pool rejected", zap.String("asset", asset.Hex()), zap.Uint64("weight", weight), zap.Error(err))
		return err
	}
	m.logger.Info("pool added",
		zap.String("asset", m.assetName(asset)),
		zap.String("feed", feed.Hex()),
		zap.Uint64("weight", weight),
	)
	return nil
}

// Stake moves amount of the pool asset from caller into custody.
func (m *Manager) Stake(ctx context.Context, caller, asset common.Address, amount *big.Int) error {
	err := m.coord.Do(ctx, "stake", func(ctx context.Context) error {
		if amount == nil || amount.Sign() <= 0 {
			return fmt.Errorf("%w: stake amount must be positive", model.ErrZeroAmount)
		}
		pool, pos, err := m.checkpoint(ctx, caller, asset)
		if err != nil {
			return err
		}
		if err := m.pull(ctx, pool, caller, amount); err != nil {
			return err
		}

		pos.Principal.Add(pos.Principal, amount)
		pool.TotalStaked.Add(pool.TotalStaked, amount)
		m.putPool(ctx, pool)
		m.putPosition(ctx, pos)
		return nil
	})
	if err != nil {
		m.logger.Debug("stake rejected", zap.String("staker", caller.Hex()), zap.String("asset", asset.Hex()), zap.Stringer("amount", amount), zap.Error(err))
		return err
	}
	m.logger.Info("staked", zap.String("staker", caller.Hex()), zap.String("asset", m.assetName(asset)), zap.Stringer("amount", amount))
	return nil
}

// Unstake returns amount of principal and pays all settled yield.
func (m *Manager) Unstake(ctx context.Context, caller, asset common.Address, amount *big.Int) (*big.Int, error) {
	var paid *big.Int
	err := m.coord.Do(ctx, "unstake", func(ctx context.Context) error {
		if amount == nil || amount.Sign() <= 0 {
			return fmt.Errorf("%w: unstake amount must be positive", model.ErrZeroAmount)
		}
		if _, ok := m.pool(asset); !ok {
			return fmt.Errorf("%w: no pool for %s", model.ErrInvalidAsset, asset.Hex())
		}
		if pos, _ := m.Position(caller, asset); pos.Principal.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s staked %s, asked %s", model.ErrInsufficientBalance, caller.Hex(), pos.Principal, amount)
		}

		pool, pos, err := m.checkpoint(ctx, caller, asset)
		if err != nil {
			return err
		}
		if err := m.push(ctx, pool, caller, amount); err != nil {
			return err
		}
		pos.Principal.Sub(pos.Principal, amount)
		pool.TotalStaked.Sub(pool.TotalStaked, amount)

		paid, err = m.payYield(ctx, &pos)
		if err != nil {
			return err
		}
		m.putPool(ctx, pool)
		m.putPosition(ctx, pos)
		return nil
	})
	if err != nil {
		m.logger.Debug("unstake rejected", zap.String("staker", caller.Hex()), zap.String("asset", asset.Hex()), zap.Stringer("amount", amount), zap.Error(err))
		return nil, err
	}
	m.logger.Info("unstaked",
		zap.String("staker", caller.Hex()),
		zap.String("asset", m.assetName(asset)),
		zap.Stringer("amount", amount),
		zap.Stringer("yield", paid),
	)
	return paid, nil
}

// ClaimYield pays settled yield without touching principal.
func (m *Manager) ClaimYield(ctx context.Context, caller, asset common.Address) (*big.Int, error) {
	var paid *big.Int
	err := m.coord.Do(ctx, "claim_yield", func(ctx context.Context) error {
		pool, pos, err := m.checkpoint(ctx, caller, asset)
		if err != nil {
			return err
		}
		if pos.AccruedYield.Sign() == 0 {
			return fmt.Errorf("%w: nothing to claim", model.ErrZeroAmount)
		}
		paid, err = m.payYield(ctx, &pos)
		if err != nil {
			return err
		}
		m.putPool(ctx, pool)
		m.putPosition(ctx, pos)
		return nil
	})
	if err != nil {
		m.logger.Debug("claim rejected", zap.String("staker", caller.Hex()), zap.String("asset", asset.Hex()), zap.Error(err))
		return nil, err
	}
	m.logger.Info("yield claimed", zap.String("staker", caller.Hex()), zap.String("asset", m.assetName(asset)), zap.Stringer("yield", paid))
	return paid, nil
}

// PendingYield is the yield staker would settle at the current time under
// the rate in force. It reads no prices and waits for in-flight operations.
func (m *Manager) PendingYield(ctx context.Context, staker, asset common.Address) (*big.Int, error) {
	var pending *big.Int
	err := m.coord.View(ctx, func(context.Context) error {
		pool, ok := m.pool(asset)
		if !ok {
			return fmt.Errorf("%w: no pool for %s", model.ErrInvalidAsset, asset.Hex())
		}
		pos, _ := m.Position(staker, asset)
		acc := accrue(pool.AccPerUnit, pool.Rate, elapsedSeconds(pool.LastCheckpoint, m.now()))
		pending = new(big.Int).Add(pos.AccruedYield, earned(pos.Principal, acc, pos.AccCheckpoint))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// Snapshot returns pools and open positions as of the last completed
// operation.
func (m *Manager) Snapshot(ctx context.Context) ([]model.Pool, []model.StakePosition, error) {
	var (
		pools     []model.Pool
		positions []model.StakePosition
	)
	err := m.coord.View(ctx, func(context.Context) error {
		pools = m.Pools()
		positions = m.Positions()
		return nil
	})
	return pools, positions, err
}

// Pools lists pools in creation order. It does not wait for in-flight
// operations; use Snapshot for a view consistent with positions.
func (m *Manager) Pools() []model.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Map(m.order, func(asset common.Address, _ int) model.Pool {
		return m.pools[asset].Clone()
	})
}

func (m *Manager) Pool(asset common.Address) (model.Pool, bool) {
	return m.pool(asset)
}

// Positions lists open positions grouped by pool in creation order.
func (m *Manager) Positions() []model.StakePosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.StakePosition, 0, len(m.positions))
	for _, asset := range m.order {
		var inPool []model.StakePosition
		for key, pos := range m.positions {
			if key.pool == asset {
				inPool = append(inPool, pos.Clone())
			}
		}
		sort.Slice(inPool, func(i, j int) bool {
			return bytes.Compare(inPool[i].Staker[:], inPool[j].Staker[:]) < 0
		})
		out = append(out, inPool...)
	}
	return out
}

// Position returns staker's position in the asset pool. Absent positions are
// returned zeroed with ok false.
func (m *Manager) Position(staker, asset common.Address) (model.StakePosition, bool) {
	m.mu.RLock()
	pos, ok := m.positions[positionKey{staker: staker, pool: asset}]
	m.mu.RUnlock()
	if !ok {
		return model.StakePosition{Staker: staker, Pool: asset}.Clone(), false
	}
	return pos.Clone(), true
}

// checkpoint accrues the pool at the rate in force since its last
// checkpoint, refreshes the rate from the oracle and settles staker's
// position against the new accumulator. The returned copies are not stored.
func (m *Manager) checkpoint(ctx context.Context, staker, asset common.Address) (model.Pool, model.StakePosition, error) {
	pool, ok := m.pool(asset)
	if !ok {
		return model.Pool{}, model.StakePosition{}, fmt.Errorf("%w: no pool for %s", model.ErrInvalidAsset, asset.Hex())
	}
	now := m.now().UTC()

	settle(&pool, now)
	if err := m.refreshRate(ctx, &pool, now); err != nil {
		return model.Pool{}, model.StakePosition{}, err
	}

	pos, _ := m.Position(staker, asset)
	pos.AccruedYield.Add(pos.AccruedYield, earned(pos.Principal, pool.AccPerUnit, pos.AccCheckpoint))
	pos.AccCheckpoint = new(big.Int).Set(pool.AccPerUnit)
	pos.LastCheckpoint = now
	return pool, pos, nil
}

// refreshRate reads prices for pool and sets its unit and weighted rates.
func (m *Manager) refreshRate(ctx context.Context, pool *model.Pool, now time.Time) error {
	if m.reward == nil {
		return fmt.Errorf("%w: no reward token configured", model.ErrInvalidAsset)
	}
	poolPrice, err := oracle.Fresh(ctx, m.prices, pool.PriceFeed, now, m.cfg.MaxPriceAge)
	if err != nil {
		return err
	}
	rewardPrice, err := oracle.Fresh(ctx, m.prices, m.cfg.RewardFeed, now, m.cfg.MaxPriceAge)
	if err != nil {
		return err
	}

	totalWeight, count := m.weights()
	pool.UnitRate = unitRate(rateInputs{
		BaseYieldPercent: m.cfg.BaseYieldPercent,
		PoolDecimals:     pool.Decimals,
		PoolPrice:        poolPrice,
		RewardDecimals:   m.reward.Decimals(),
		RewardPrice:      rewardPrice,
	})
	pool.Rate = weightedRate(pool.UnitRate, pool.Weight, totalWeight, count)
	return nil
}

// reweight settles every pool at the rate it has been accruing under, then
// renormalises all rates to the current pool set from their unit rates.
func (m *Manager) reweight(ctx context.Context, now time.Time) {
	totalWeight, count := m.weights()
	for _, pool := range m.Pools() {
		settle(&pool, now)
		pool.Rate = weightedRate(pool.UnitRate, pool.Weight, totalWeight, count)
		m.putPool(ctx, pool)
	}
}

func (m *Manager) weights() (uint64, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.SumBy(lo.Values(m.pools), func(p model.Pool) uint64 { return p.Weight }), len(m.pools)
}

func (m *Manager) payYield(ctx context.Context, pos *model.StakePosition) (*big.Int, error) {
	paid := new(big.Int).Set(pos.AccruedYield)
	if paid.Sign() == 0 {
		return paid, nil
	}
	if err := m.reward.Transfer(ctx, m.cfg.Address, pos.Staker, paid); err != nil {
		return nil, fmt.Errorf("pay yield: %w", err)
	}
	pos.AccruedYield = big.NewInt(0)
	return paid, nil
}

// pull moves stake from staker into custody.
func (m *Manager) pull(ctx context.Context, pool model.Pool, staker common.Address, amount *big.Int) error {
	if pool.IsNative() {
		if m.native == nil {
			return fmt.Errorf("%w: native asset not supported", model.ErrInvalidAsset)
		}
		return m.native.Transfer(ctx, staker, m.cfg.Address, amount)
	}
	token, ok := m.assets.Lookup(pool.Asset)
	if !ok {
		return fmt.Errorf("%w: unknown fungible asset %s", model.ErrInvalidAsset, pool.Asset.Hex())
	}
	return token.TransferFrom(ctx, m.cfg.Address, staker, m.cfg.Address, amount)
}

// push returns principal from custody to staker.
func (m *Manager) push(ctx context.Context, pool model.Pool, staker common.Address, amount *big.Int) error {
	if pool.IsNative() {
		if m.native == nil {
			return fmt.Errorf("%w: native asset not supported", model.ErrInvalidAsset)
		}
		return m.native.Transfer(ctx, m.cfg.Address, staker, amount)
	}
	token, ok := m.assets.Lookup(pool.Asset)
	if !ok {
		return fmt.Errorf("%w: unknown fungible asset %s", model.ErrInvalidAsset, pool.Asset.Hex())
	}
	return token.Transfer(ctx, m.cfg.Address, staker, amount)
}

func (m *Manager) pool(asset common.Address) (model.Pool, bool) {
	m.mu.RLock()
	pool, ok := m.pools[asset]
	m.mu.RUnlock()
	if !ok {
		return model.Pool{}, false
	}
	return pool.Clone(), true
}

func (m *Manager) putPool(ctx context.Context, pool model.Pool) {
	m.mu.Lock()
	prev, had := m.pools[pool.Asset]
	m.pools[pool.Asset] = pool.Clone()
	if !had {
		m.order = append(m.order, pool.Asset)
	}
	m.mu.Unlock()

	txn.Record(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if had {
			m.pools[pool.Asset] = prev
			return
		}
		delete(m.pools, pool.Asset)
		m.order = m.order[:len(m.order)-1]
	})
}

// putPosition stores pos, dropping it once principal and yield are zero.
func (m *Manager) putPosition(ctx context.Context, pos model.StakePosition) {
	key := positionKey{staker: pos.Staker, pool: pos.Pool}

	m.mu.Lock()
	prev, had := m.positions[key]
	if pos.Empty() {
		delete(m.positions, key)
	} else {
		m.positions[key] = pos.Clone()
	}
	m.mu.Unlock()

	txn.Record(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if had {
			m.positions[key] = prev
		} else {
			delete(m.positions, key)
		}
	})
}

func (m *Manager) assetName(asset common.Address) string {
	if asset == model.NativeAsset && m.cfg.NativeSymbol != "" {
		return m.cfg.NativeSymbol
	}
	return asset.Hex()
}

// settle advances the pool accumulator to now in whole seconds.
func settle(pool *model.Pool, now time.Time) {
	elapsed := elapsedSeconds(pool.LastCheckpoint, now)
	pool.AccPerUnit = accrue(pool.AccPerUnit, pool.Rate, elapsed)
	pool.LastCheckpoint = pool.LastCheckpoint.Add(time.Duration(elapsed) * time.Second)
}

func elapsedSeconds(from, to time.Time) int64 {
	if !to.After(from) {
		return 0
	}
	return int64(to.Sub(from) / time.Second)
}
