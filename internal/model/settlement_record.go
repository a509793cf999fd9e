package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SettlementRecord is the immutable audit entry of a completed property sale.
type SettlementRecord struct {
	ID              string         `json:"id"`
	Registry        common.Address `json:"registry"`
	Seller          common.Address `json:"seller"`
	Buyer           common.Address `json:"buyer"`
	TokenID         *big.Int       `json:"token_id"`
	Price           *big.Int       `json:"price"`
	RoyaltyReceiver common.Address `json:"royalty_receiver"`
	RoyaltyAmount   *big.Int       `json:"royalty_amount"`
	Operator        common.Address `json:"operator"`
	Timestamp       time.Time      `json:"timestamp"`
}
