package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a staking bucket for one fungible asset.
type Pool struct {
	Asset     common.Address `json:"asset"`
	PriceFeed common.Address `json:"price_feed"`
	Weight    uint64         `json:"weight"`
	Decimals  uint8          `json:"decimals"`
	CreatedAt time.Time      `json:"created_at"`

	// Accrual state. UnitRate, Rate and AccPerUnit are scaled by
	// AccrualScale. UnitRate is the price-derived rate at the mean weight;
	// Rate is UnitRate normalised by the pool's share of the total weight.
	TotalStaked    *big.Int  `json:"total_staked"`
	UnitRate       *big.Int  `json:"unit_rate"`
	Rate           *big.Int  `json:"rate"`
	AccPerUnit     *big.Int  `json:"acc_per_unit"`
	LastCheckpoint time.Time `json:"last_checkpoint"`
}

// AccrualScale is the fixed-point scale of pool rates and accumulators.
var AccrualScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// IsNative reports whether the pool stakes the chain's native asset.
func (p Pool) IsNative() bool {
	return p.Asset == NativeAsset
}

// Clone returns a deep copy so journaled state can be restored.
func (p Pool) Clone() Pool {
	p.TotalStaked = cloneInt(p.TotalStaked)
	p.UnitRate = cloneInt(p.UnitRate)
	p.Rate = cloneInt(p.Rate)
	p.AccPerUnit = cloneInt(p.AccPerUnit)
	return p
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
