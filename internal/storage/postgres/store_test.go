package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"propertyBank/internal/model"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.EqualError(t, err, "pg dsn is required")
}

func TestNumeric(t *testing.T) {
	require.Equal(t, "0", numeric(nil))
	big1e30, ok := new(big.Int).SetString("1000000000000000000000000000000", 10)
	require.True(t, ok)
	require.Equal(t, "1000000000000000000000000000000", numeric(big1e30))
}

func TestPositionKeys(t *testing.T) {
	stakers, pools := positionKeys(nil)
	require.NotNil(t, stakers)
	require.Empty(t, stakers)
	require.Empty(t, pools)

	positions := []model.StakePosition{
		{Staker: common.HexToAddress("0xa2"), Pool: model.NativeAsset},
		{Staker: common.HexToAddress("0xa2"), Pool: common.HexToAddress("0xc02")},
	}
	stakers, pools = positionKeys(positions)
	require.Equal(t, []string{positions[0].Staker.Hex(), positions[1].Staker.Hex()}, stakers)
	require.Equal(t, []string{model.NativeAsset.Hex(), common.HexToAddress("0xc02").Hex()}, pools)
}
