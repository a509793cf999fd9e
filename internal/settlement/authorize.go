package settlement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"propertyBank/internal/model"
)

// operatorState is what the platform-level check reads about the engine.
type operatorState struct {
	Engine           common.Address
	Registry         common.Address
	AllowlistAsset   common.Address
	Listed           bool
	RegistryApproved bool
}

// platformAllowed passes when the engine is allow-listed for the registry
// holding the token and the registry itself accepts it as an operator.
func platformAllowed(s operatorState) error {
	if s.AllowlistAsset != s.Registry {
		return fmt.Errorf("%w: allowlist guards %s, token lives in %s",
			model.ErrUnauthorized, s.AllowlistAsset.Hex(), s.Registry.Hex())
	}
	if !s.Listed {
		return fmt.Errorf("%w: operator %s is not allow-listed for %s",
			model.ErrUnauthorized, s.Engine.Hex(), s.Registry.Hex())
	}
	if !s.RegistryApproved {
		return fmt.Errorf("%w: registry %s does not approve operator %s",
			model.ErrUnauthorized, s.Registry.Hex(), s.Engine.Hex())
	}
	return nil
}

// delegationState is what the owner-side check reads about one sale.
type delegationState struct {
	TokenID         *big.Int
	Seller          common.Address
	Owner           common.Address
	Price           *big.Int
	Royalty         *big.Int
	BuyerAllowance  *big.Int
	SellerAllowance *big.Int
}

// ownerDelegated passes when the seller owns the token and both parties
// delegated enough of the settlement asset to the engine.
func ownerDelegated(s delegationState) error {
	if s.Owner != s.Seller {
		return fmt.Errorf("%w: token %s is owned by %s, not seller %s",
			model.ErrInvalidAsset, s.TokenID, s.Owner.Hex(), s.Seller.Hex())
	}
	if s.BuyerAllowance.Cmp(s.Price) < 0 {
		return fmt.Errorf("%w: buyer allowance %s below price %s",
			model.ErrInsufficientAllowance, s.BuyerAllowance, s.Price)
	}
	if s.SellerAllowance.Cmp(s.Royalty) < 0 {
		return fmt.Errorf("%w: seller allowance %s below royalty %s",
			model.ErrInsufficientAllowance, s.SellerAllowance, s.Royalty)
	}
	return nil
}
