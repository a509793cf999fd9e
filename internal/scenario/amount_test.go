package scenario

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("600", 18, false)
	require.NoError(t, err)
	require.Equal(t, "600000000000000000000", v.String())

	v, err = ParseAmount("21.86", 8, false)
	require.NoError(t, err)
	require.Equal(t, "2186000000", v.String())

	v, err = ParseAmount("1_000", 0, true)
	require.NoError(t, err)
	require.Equal(t, "1000", v.String())

	_, err = ParseAmount("0.001", 2, false)
	require.ErrorContains(t, err, "decimal places")

	_, err = ParseAmount("-1", 18, false)
	require.ErrorContains(t, err, "negative")

	_, err = ParseAmount("1.5", 18, true)
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	v, ok := new(big.Int).SetString("475000000000000000000", 10)
	require.True(t, ok)
	require.Equal(t, "475", FormatAmount(v, 18))
	require.Equal(t, "0.01", FormatAmount(big.NewInt(1000000), 8))
	require.Equal(t, "0", FormatAmount(nil, 18))
}
