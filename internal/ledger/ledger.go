package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"propertyBank/internal/model"
)

// Fungible is the balance/allowance/transfer surface of a fungible asset.
type Fungible interface {
	Address() common.Address
	Decimals() uint8
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	// TransferFrom moves amount from `from` to `to` on behalf of spender,
	// consuming spender's allowance.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	// Transfer moves amount out of from's own balance.
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Native moves the chain's native balance.
type Native interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// NonFungible is the ownership and royalty surface of a unique-asset registry.
type NonFungible interface {
	Address() common.Address
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	RoyaltyInfo(ctx context.Context, tokenID, salePrice *big.Int) (common.Address, *big.Int, error)
	TransferFrom(ctx context.Context, operator, from, to common.Address, tokenID *big.Int) error
	// IsApprovedOperator is the registry's own operator check, independent of
	// any platform allowlist.
	IsApprovedOperator(ctx context.Context, operator common.Address) (bool, error)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: amount must be non-negative", model.ErrZeroAmount)
	}
	return nil
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
