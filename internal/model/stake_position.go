package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StakePosition is one staker's stake in one pool.
type StakePosition struct {
	Staker         common.Address `json:"staker"`
	Pool           common.Address `json:"pool"`
	Principal      *big.Int       `json:"principal"`
	AccruedYield   *big.Int       `json:"accrued_yield"`
	AccCheckpoint  *big.Int       `json:"acc_checkpoint"`
	LastCheckpoint time.Time      `json:"last_checkpoint"`
}

// Empty reports whether principal and accrued yield are both zero.
func (s StakePosition) Empty() bool {
	return (s.Principal == nil || s.Principal.Sign() == 0) &&
		(s.AccruedYield == nil || s.AccruedYield.Sign() == 0)
}

func (s StakePosition) Clone() StakePosition {
	s.Principal = cloneInt(s.Principal)
	s.AccruedYield = cloneInt(s.AccruedYield)
	s.AccCheckpoint = cloneInt(s.AccCheckpoint)
	return s
}
