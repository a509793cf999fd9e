package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriceDecimal(t *testing.T) {
	p := Price{Value: big.NewInt(2186000000), Decimals: 8}
	require.Equal(t, "21.86", p.Decimal().String())

	require.True(t, Price{}.Decimal().IsZero())
}

func TestRoyaltyFor(t *testing.T) {
	asset := UniqueAsset{RoyaltyBps: 500}
	require.Equal(t, "50", asset.RoyaltyFor(big.NewInt(1000)).String())
	require.Equal(t, "0", UniqueAsset{}.RoyaltyFor(big.NewInt(1000)).String())
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("BANKER_ROLE")
	require.True(t, ok)
	require.Equal(t, RoleBanker, role)
	require.Equal(t, "BANKER_ROLE", role.String())

	role, ok = ParseRole(RoleMinter.String())
	require.True(t, ok)
	require.Equal(t, RoleMinter, role)

	_, ok = ParseRole("nope")
	require.False(t, ok)
}
