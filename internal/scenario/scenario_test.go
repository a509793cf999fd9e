package scenario

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"propertyBank/internal/bank"
	"propertyBank/internal/model"
)

func replay(t *testing.T, path string) (*bank.World, Result) {
	t.Helper()
	sc, err := Load(path)
	require.NoError(t, err)
	cfg, err := sc.Config()
	require.NoError(t, err)

	world, err := bank.NewWorld(context.Background(), cfg, nil, nil)
	require.NoError(t, err)

	res, err := NewRunner(sc, world, nil).Run(context.Background())
	require.NoError(t, err)
	return world, res
}

func TestReplayRoyaltyScenario(t *testing.T) {
	_, res := replay(t, "testdata/royalty.yaml")
	require.Equal(t, 18, res.Steps)
	require.Equal(t, 4, res.ExpectedFailures)
	require.Len(t, res.Settlements, 1)

	record := res.Settlements[0]
	require.Equal(t, "25", FormatAmount(record.RoyaltyAmount, 18))
	require.Equal(t, common.HexToAddress("0xa1"), record.RoyaltyReceiver)
	require.Equal(t, common.HexToAddress("0xb01"), record.Operator)
}

func TestReplayStakingScenario(t *testing.T) {
	world, res := replay(t, "testdata/staking.yaml")
	require.Equal(t, 5, res.ExpectedFailures)

	// one day of LINK (10 staked) and ETH (1 staked) pools sharing weights 120/110
	require.Equal(t, "1058325193567598774400", res.YieldPaid.String())

	bal, err := world.Currency.BalanceOf(context.Background(), common.HexToAddress("0xa2"))
	require.NoError(t, err)
	require.Equal(t, res.YieldPaid.String(), bal.String())

	pools := world.Staking.Pools()
	require.Len(t, pools, 2)
	require.Equal(t, model.NativeAsset, pools[0].Asset)
	require.Equal(t, uint64(120), pools[1].Weight)
	require.Empty(t, world.Staking.Positions())
}

func TestRunnerReportsMismatchedExpectation(t *testing.T) {
	sc, err := Load("testdata/royalty.yaml")
	require.NoError(t, err)
	sc.Steps = []Step{
		{Op: "mint", Token: "MONO", To: "buyer", Amount: "1", Expect: "ZeroAmount"},
	}
	cfg, err := sc.Config()
	require.NoError(t, err)
	world, err := bank.NewWorld(context.Background(), cfg, nil, nil)
	require.NoError(t, err)

	_, err = NewRunner(sc, world, nil).Run(context.Background())
	require.ErrorContains(t, err, "expected ZeroAmount, got success")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: x\nsteps:\n  - op: mint\n    colour: red\n"))
	require.Error(t, err)

	_, err = Parse([]byte("name: x\n"))
	require.ErrorContains(t, err, "no steps")
}

func TestNamedError(t *testing.T) {
	err, ok := namedError("insufficient_balance")
	require.True(t, ok)
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	_, ok = namedError("Overflow")
	require.False(t, ok)
}
