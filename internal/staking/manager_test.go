package staking

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"propertyBank/internal/access"
	"propertyBank/internal/ledger"
	"propertyBank/internal/model"
	"propertyBank/internal/oracle"
	"propertyBank/internal/txn"
)

var (
	admin   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000c3")

	rewardAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	wethAddr   = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	landAddr   = common.HexToAddress("0x00000000000000000000000000000000000000f3")

	rewardFeed = common.HexToAddress("0x0000000000000000000000000000000000000fe1")
	wethFeed   = common.HexToAddress("0x0000000000000000000000000000000000000fe2")
	landFeed   = common.HexToAddress("0x0000000000000000000000000000000000000fe3")
	ethFeed    = common.HexToAddress("0x0000000000000000000000000000000000000fe4")

	genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day     = 24 * time.Hour
	year    = 365 * day
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e8))
}

type fixture struct {
	now     time.Time
	coord   *txn.Coordinator
	feeds   *oracle.StaticFeeds
	reward  *ledger.Token
	weth    *ledger.Token
	land    *ledger.Token
	native  *ledger.NativeBank
	manager *Manager
}

func newFixture(t *testing.T, maxAge time.Duration, rewardFloat *big.Int) *fixture {
	t.Helper()
	ctx := context.Background()
	coord := txn.NewCoordinator(nil)

	f := &fixture{
		now:    genesis,
		coord:  coord,
		feeds:  oracle.NewStaticFeeds(),
		reward: ledger.NewToken(rewardAddr, "BANK", 18, nil),
		weth:   ledger.NewToken(wethAddr, "WETH", 18, nil),
		land:   ledger.NewToken(landAddr, "LAND", 18, nil),
		native: ledger.NewNativeBank("ETH"),
	}
	f.publish(usd(2000), usd(2000))

	f.manager = NewManager(
		Config{Address: custody, RewardFeed: rewardFeed, NativeSymbol: "ETH", MaxPriceAge: maxAge},
		access.NewRegistry(admin, coord, nil),
		f.feeds,
		f.reward,
		f.native,
		ledger.NewDirectory(f.reward, f.weth, f.land),
		coord,
		nil,
		WithClock(func() time.Time { return f.now }),
	)

	require.NoError(t, f.reward.Mint(ctx, custody, rewardFloat))
	require.NoError(t, f.weth.Mint(ctx, alice, ether(10)))
	require.NoError(t, f.weth.Approve(ctx, alice, custody, ether(10)))
	require.NoError(t, f.land.Mint(ctx, alice, ether(10)))
	require.NoError(t, f.land.Approve(ctx, alice, custody, ether(10)))
	require.NoError(t, f.native.Credit(ctx, alice, ether(5)))
	return f
}

// publish sets every feed at the current time. The reward token is worth
// one dollar.
func (f *fixture) publish(wethPrice, landPrice *big.Int) {
	f.feeds.Set(rewardFeed, usd(1), 8, f.now)
	f.feeds.Set(wethFeed, wethPrice, 8, f.now)
	f.feeds.Set(landFeed, landPrice, 8, f.now)
	f.feeds.Set(ethFeed, usd(2000), 8, f.now)
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func balanceOf(t *testing.T, token ledger.Fungible, account common.Address) string {
	t.Helper()
	bal, err := token.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return bal.String()
}

func TestAddPool(t *testing.T) {
	f := newFixture(t, day, ether(1000))
	ctx := context.Background()

	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 3))
	before := f.manager.Pools()

	err := f.manager.AddPool(ctx, admin, wethAddr, landFeed, 5)
	require.ErrorIs(t, err, model.ErrDuplicatePool)
	require.Equal(t, before, f.manager.Pools())

	err = f.manager.AddPool(ctx, alice, landAddr, landFeed, 1)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	err = f.manager.AddPool(ctx, admin, landAddr, landFeed, 0)
	require.ErrorIs(t, err, model.ErrZeroAmount)

	err = f.manager.AddPool(ctx, admin, common.HexToAddress("0xdead"), landFeed, 1)
	require.ErrorIs(t, err, model.ErrInvalidAsset)

	pools := f.manager.Pools()
	require.Len(t, pools, 1)
	require.Equal(t, uint64(3), pools[0].Weight)
	require.Equal(t, "0", pools[0].Rate.String())
}

func TestStakeUnstakeWithoutElapsedTime(t *testing.T) {
	f := newFixture(t, day, ether(1000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))

	require.NoError(t, f.manager.Stake(ctx, alice, wethAddr, ether(4)))
	require.Equal(t, ether(6).String(), balanceOf(t, f.weth, alice))
	require.Equal(t, ether(4).String(), balanceOf(t, f.weth, custody))

	paid, err := f.manager.Unstake(ctx, alice, wethAddr, ether(4))
	require.NoError(t, err)
	require.Equal(t, "0", paid.String())
	require.Equal(t, ether(10).String(), balanceOf(t, f.weth, alice))
	require.Equal(t, ether(1000).String(), balanceOf(t, f.reward, custody))

	_, ok := f.manager.Position(alice, wethAddr)
	require.False(t, ok)
}

func TestYieldOverOneYear(t *testing.T) {
	f := newFixture(t, day, ether(10000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))
	require.NoError(t, f.manager.Stake(ctx, alice, wethAddr, ether(1)))

	// one WETH at $2000 earning 100% a year in a $1 token
	rate := new(big.Int).Quo(ether(2000), big.NewInt(secondsPerYear))
	pool, ok := f.manager.Pool(wethAddr)
	require.True(t, ok)
	require.Equal(t, rate.String(), pool.Rate.String())

	f.advance(year)
	want := new(big.Int).Mul(rate, big.NewInt(secondsPerYear))

	pending, err := f.manager.PendingYield(ctx, alice, wethAddr)
	require.NoError(t, err)
	require.Equal(t, want.String(), pending.String())

	f.publish(usd(2000), usd(2000))
	paid, err := f.manager.Unstake(ctx, alice, wethAddr, ether(1))
	require.NoError(t, err)
	require.Equal(t, want.String(), paid.String())
	require.Equal(t, want.String(), balanceOf(t, f.reward, alice))
	require.Equal(t, ether(10).String(), balanceOf(t, f.weth, alice))

	shortfall := new(big.Int).Sub(ether(2000), paid)
	require.True(t, shortfall.Sign() >= 0 && shortfall.Cmp(big.NewInt(secondsPerYear)) < 0)
}

func TestAddPoolRenormalisesExistingPools(t *testing.T) {
	f := newFixture(t, 0, ether(10000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))
	require.NoError(t, f.manager.Stake(ctx, alice, wethAddr, ether(1)))

	unit := new(big.Int).Quo(ether(2000), big.NewInt(secondsPerYear))
	half := int64(secondsPerYear / 2)

	// half a year alone, then half a year sharing with a pool of weight 3
	f.advance(time.Duration(half) * time.Second)
	require.NoError(t, f.manager.AddPool(ctx, admin, landAddr, landFeed, 3))

	shared := new(big.Int).Quo(new(big.Int).Mul(unit, big.NewInt(2)), big.NewInt(4))
	pool, ok := f.manager.Pool(wethAddr)
	require.True(t, ok)
	require.Equal(t, shared.String(), pool.Rate.String())
	require.Equal(t, unit.String(), pool.UnitRate.String())
	require.Equal(t, new(big.Int).Mul(unit, big.NewInt(half)).String(), pool.AccPerUnit.String())
	require.True(t, pool.LastCheckpoint.Equal(f.now))

	land, ok := f.manager.Pool(landAddr)
	require.True(t, ok)
	require.Equal(t, "0", land.Rate.String())

	f.advance(time.Duration(half) * time.Second)
	pending, err := f.manager.PendingYield(ctx, alice, wethAddr)
	require.NoError(t, err)

	want := new(big.Int).Mul(unit, big.NewInt(half))
	want.Add(want, new(big.Int).Mul(shared, big.NewInt(half)))
	require.Equal(t, want.String(), pending.String())

	paid, err := f.manager.ClaimYield(ctx, alice, wethAddr)
	require.NoError(t, err)
	require.Equal(t, want.String(), paid.String())
}

func TestSnapshotWaitsForOperations(t *testing.T) {
	f := newFixture(t, day, ether(1000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.coord.Do(ctx, "hold", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	var (
		pools     []model.Pool
		positions []model.StakePosition
		err       error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pools, positions, err = f.manager.Snapshot(ctx)
	}()

	select {
	case <-done:
		t.Fatal("snapshot completed while an operation was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("snapshot did not complete")
	}
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Empty(t, positions)
}

func TestRateChangeIsNotRetroactive(t *testing.T) {
	f := newFixture(t, day, ether(10000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))
	require.NoError(t, f.manager.Stake(ctx, alice, wethAddr, ether(1)))

	f.advance(day)
	f.publish(usd(4000), usd(2000))
	first, err := f.manager.ClaimYield(ctx, alice, wethAddr)
	require.NoError(t, err)

	oldRate := new(big.Int).Quo(ether(2000), big.NewInt(secondsPerYear))
	require.Equal(t, new(big.Int).Mul(oldRate, big.NewInt(86400)).String(), first.String())

	f.advance(day)
	f.publish(usd(4000), usd(2000))
	second, err := f.manager.ClaimYield(ctx, alice, wethAddr)
	require.NoError(t, err)

	newRate := new(big.Int).Quo(ether(4000), big.NewInt(secondsPerYear))
	require.Equal(t, new(big.Int).Mul(newRate, big.NewInt(86400)).String(), second.String())

	_, err = f.manager.ClaimYield(ctx, alice, wethAddr)
	require.ErrorIs(t, err, model.ErrZeroAmount)
}

func TestPoolRateWeightNormalisation(t *testing.T) {
	in := rateInputs{
		BaseYieldPercent: 100,
		TotalWeight:      3,
		PoolCount:        2,
		PoolDecimals:     18,
		PoolPrice:        model.Price{Value: usd(2000), Decimals: 8},
		RewardDecimals:   18,
		RewardPrice:      model.Price{Value: usd(1), Decimals: 8},
	}
	light, heavy := in, in
	light.Weight = 1
	heavy.Weight = 2

	lightRate, heavyRate := poolRate(light), poolRate(heavy)
	diff := new(big.Int).Sub(heavyRate, new(big.Int).Mul(lightRate, big.NewInt(2)))
	require.True(t, diff.Sign() >= 0 && diff.Cmp(big.NewInt(1)) <= 0, "heavy=%s light=%s", heavyRate, lightRate)

	// equal weights pay the base yield in both pools
	even := in
	even.Weight, even.TotalWeight = 5, 10
	require.Equal(t, new(big.Int).Quo(ether(2000), big.NewInt(secondsPerYear)).String(), poolRate(even).String())

	// six-decimal tokens are scaled up to the reward token's precision
	usdc := in
	usdc.Weight, usdc.TotalWeight, usdc.PoolCount = 1, 1, 1
	usdc.PoolDecimals = 6
	usdc.PoolPrice = model.Price{Value: usd(1), Decimals: 8}
	require.Equal(t, new(big.Int).Quo(ether(1_000_000_000_000), big.NewInt(secondsPerYear)).String(), poolRate(usdc).String())
}

func TestStalePriceRejected(t *testing.T) {
	f := newFixture(t, time.Hour, ether(1000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))

	f.advance(2 * time.Hour)
	err := f.manager.Stake(ctx, alice, wethAddr, ether(1))
	require.ErrorIs(t, err, model.ErrInvalidAsset)
	require.Equal(t, ether(10).String(), balanceOf(t, f.weth, alice))

	f.publish(big.NewInt(0), usd(1))
	err = f.manager.Stake(ctx, alice, wethAddr, ether(1))
	require.ErrorIs(t, err, model.ErrInvalidAsset)

	f.publish(usd(2000), usd(1))
	require.NoError(t, f.manager.Stake(ctx, alice, wethAddr, ether(1)))
}

func TestNativePool(t *testing.T) {
	f := newFixture(t, day, ether(1000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, model.NativeAsset, ethFeed, 1))

	pool, ok := f.manager.Pool(model.NativeAsset)
	require.True(t, ok)
	require.True(t, pool.IsNative())
	require.Equal(t, model.NativeDecimals, pool.Decimals)

	require.NoError(t, f.manager.Stake(ctx, alice, model.NativeAsset, ether(2)))
	bal, err := f.native.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, ether(3).String(), bal.String())
	bal, err = f.native.BalanceOf(ctx, custody)
	require.NoError(t, err)
	require.Equal(t, ether(2).String(), bal.String())

	err = f.manager.Stake(ctx, alice, model.NativeAsset, ether(4))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	_, err = f.manager.Unstake(ctx, alice, model.NativeAsset, ether(2))
	require.NoError(t, err)
	bal, err = f.native.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, ether(5).String(), bal.String())
}

func TestUnstakeBeyondPrincipal(t *testing.T) {
	f := newFixture(t, day, ether(1000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))
	require.NoError(t, f.manager.Stake(ctx, alice, wethAddr, ether(1)))

	_, err := f.manager.Unstake(ctx, alice, wethAddr, ether(2))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	_, err = f.manager.Unstake(ctx, alice, landAddr, ether(1))
	require.ErrorIs(t, err, model.ErrInvalidAsset)

	err = f.manager.Stake(ctx, alice, wethAddr, big.NewInt(0))
	require.ErrorIs(t, err, model.ErrZeroAmount)
}

func TestUnstakeRollsBackWhenRewardsUnfunded(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))
	require.NoError(t, f.manager.AddPool(ctx, admin, landAddr, landFeed, 1))
	require.NoError(t, f.manager.Stake(ctx, alice, wethAddr, ether(3)))
	poolBefore, _ := f.manager.Pool(wethAddr)
	posBefore, _ := f.manager.Position(alice, wethAddr)

	f.advance(day)
	_, err := f.manager.Unstake(ctx, alice, wethAddr, ether(1))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	poolAfter, _ := f.manager.Pool(wethAddr)
	posAfter, _ := f.manager.Position(alice, wethAddr)
	require.Equal(t, poolBefore, poolAfter)
	require.Equal(t, posBefore, posAfter)
	require.Equal(t, ether(7).String(), balanceOf(t, f.weth, alice))
	require.Equal(t, ether(3).String(), balanceOf(t, f.weth, custody))
}

func TestPositionsListing(t *testing.T) {
	f := newFixture(t, day, ether(1000))
	ctx := context.Background()
	require.NoError(t, f.manager.AddPool(ctx, admin, landAddr, landFeed, 2))
	require.NoError(t, f.manager.AddPool(ctx, admin, wethAddr, wethFeed, 1))
	require.NoError(t, f.manager.Stake(ctx, alice, wethAddr, ether(1)))
	require.NoError(t, f.manager.Stake(ctx, alice, landAddr, ether(2)))

	positions := f.manager.Positions()
	require.Len(t, positions, 2)
	require.Equal(t, landAddr, positions[0].Pool)
	require.Equal(t, wethAddr, positions[1].Pool)
	require.Equal(t, ether(2).String(), positions[0].Principal.String())
}
