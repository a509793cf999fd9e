package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the sentinel identity of the chain's native asset. It has no
// contract; pools keyed by it move native balances directly.
var NativeAsset = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// NativeDecimals is the precision of native balances.
const NativeDecimals uint8 = 18

// RoyaltyDenominator is the basis-point scale of royalty rates.
const RoyaltyDenominator = 10000

// UniqueAsset is a property token with its royalty parameters fixed at mint.
type UniqueAsset struct {
	TokenID         *big.Int       `json:"token_id"`
	Owner           common.Address `json:"owner"`
	RoyaltyReceiver common.Address `json:"royalty_receiver"`
	RoyaltyBps      uint16         `json:"royalty_bps"`
}

// RoyaltyFor returns the royalty owed on a sale at salePrice.
func (u UniqueAsset) RoyaltyFor(salePrice *big.Int) *big.Int {
	if salePrice == nil || u.RoyaltyBps == 0 {
		return big.NewInt(0)
	}
	amount := new(big.Int).Mul(salePrice, big.NewInt(int64(u.RoyaltyBps)))
	return amount.Div(amount, big.NewInt(RoyaltyDenominator))
}
