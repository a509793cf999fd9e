package bank

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"propertyBank/internal/model"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	player   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	start    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func testConfig() Config {
	return Config{
		Deployer:       deployer,
		Bank:           common.HexToAddress("0x0000000000000000000000000000000000000b0a"),
		Staking:        common.HexToAddress("0x0000000000000000000000000000000000000b0b"),
		Properties:     common.HexToAddress("0x0000000000000000000000000000000000000b0c"),
		PropertySymbol: "MWP",
		Currency:       TokenSpec{Symbol: "MONO", Address: common.HexToAddress("0x0000000000000000000000000000000000000c01"), Decimals: 18},
		Tokens: []TokenSpec{
			{Symbol: "LINK", Address: common.HexToAddress("0x0000000000000000000000000000000000000c02"), Decimals: 18},
		},
		NativeSymbol: "ETH",
		RewardFeed:   common.HexToAddress("0x0000000000000000000000000000000000000fe1"),
		Start:        start,
	}
}

func TestNewWorldBootstrap(t *testing.T) {
	w, err := NewWorld(context.Background(), testConfig(), nil, nil)
	require.NoError(t, err)

	require.True(t, w.Roles.HasRole(model.RoleAdmin, deployer))
	require.True(t, w.Roles.HasRole(model.RoleBanker, deployer))
	require.True(t, w.PropertyRoles.HasRole(model.RoleMinter, testConfig().Bank))
	require.False(t, w.Allowlist.IsAllowed(testConfig().Bank))
	require.Equal(t, "MONO", w.Currency.Symbol())
	require.True(t, w.Clock.Now().Equal(start))

	link, err := w.Token("link")
	require.NoError(t, err)
	require.Equal(t, "LINK", link.Symbol())

	byAddr, err := w.Token(link.Address().Hex())
	require.NoError(t, err)
	require.Same(t, link, byAddr)

	_, err = w.Token("DOGE")
	require.ErrorIs(t, err, model.ErrInvalidAsset)

	native, err := w.Asset("eth")
	require.NoError(t, err)
	require.Equal(t, model.NativeAsset, native)
}

func TestNewWorldValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Bank = common.Address{}
	_, err := NewWorld(context.Background(), cfg, nil, nil)
	require.ErrorContains(t, err, "bank address is required")

	cfg = testConfig()
	cfg.Tokens = append(cfg.Tokens, TokenSpec{Symbol: "mono", Address: common.HexToAddress("0xc03")})
	_, err = NewWorld(context.Background(), cfg, nil, nil)
	require.ErrorContains(t, err, "declared twice")
}

func TestAllowOperatorSetsBothChecks(t *testing.T) {
	ctx := context.Background()
	w, err := NewWorld(ctx, testConfig(), nil, nil)
	require.NoError(t, err)
	bankAddr := testConfig().Bank

	err = w.AllowOperator(ctx, player, bankAddr, true)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	require.False(t, w.Allowlist.IsAllowed(bankAddr))

	require.NoError(t, w.AllowOperator(ctx, deployer, bankAddr, true))
	require.True(t, w.Allowlist.IsAllowed(bankAddr))
	approved, err := w.Properties.IsApprovedOperator(ctx, bankAddr)
	require.NoError(t, err)
	require.True(t, approved)

	require.NoError(t, w.AllowOperator(ctx, deployer, bankAddr, false))
	require.False(t, w.Allowlist.IsAllowed(bankAddr))
}

func TestWorldSettlementEndToEnd(t *testing.T) {
	ctx := context.Background()
	w, err := NewWorld(ctx, testConfig(), nil, nil)
	require.NoError(t, err)
	bankAddr := testConfig().Bank
	seller := common.HexToAddress("0xd1")

	require.NoError(t, w.Mint(ctx, w.Currency, player, big.NewInt(600)))
	require.NoError(t, w.MintProperty(ctx, bankAddr, seller, big.NewInt(0), deployer, 500))
	require.NoError(t, w.Approve(ctx, w.Currency, player, bankAddr, big.NewInt(500)))
	require.NoError(t, w.Approve(ctx, w.Currency, seller, bankAddr, big.NewInt(25)))
	require.NoError(t, w.AllowOperator(ctx, deployer, bankAddr, true))

	w.Advance(time.Hour)
	record, err := w.Engine.PropertyTransfer(ctx, deployer, seller, player, big.NewInt(0), big.NewInt(500))
	require.NoError(t, err)
	require.True(t, record.Timestamp.Equal(start.Add(time.Hour)))

	bal, err := w.Currency.BalanceOf(ctx, deployer)
	require.NoError(t, err)
	require.Equal(t, "25", bal.String())
}

func TestManualClockIgnoresNegative(t *testing.T) {
	clock := NewManualClock(start)
	clock.Advance(-time.Hour)
	require.True(t, clock.Now().Equal(start))
	require.True(t, clock.Advance(time.Minute).Equal(start.Add(time.Minute)))
}
