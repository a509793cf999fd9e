package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Price is a feed answer in the reference currency.
type Price struct {
	Value     *big.Int  `json:"value"`
	Decimals  uint8     `json:"decimals"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Decimal renders the raw answer at its feed precision.
func (p Price) Decimal() decimal.Decimal {
	if p.Value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.Value, -int32(p.Decimals))
}
