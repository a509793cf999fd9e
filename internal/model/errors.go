package model

import "errors"

// Error taxonomy shared by the settlement and staking core. Callers match
// with errors.Is; the wrapped message carries the operation context.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidAsset          = errors.New("invalid asset")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrDuplicatePool         = errors.New("duplicate pool")
	ErrZeroAmount            = errors.New("zero amount")
)
