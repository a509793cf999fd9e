package settlement

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"propertyBank/internal/model"
)

func TestPlatformAllowed(t *testing.T) {
	registry := common.HexToAddress("0xf2")
	ok := operatorState{
		Engine:           bankAddr,
		Registry:         registry,
		AllowlistAsset:   registry,
		Listed:           true,
		RegistryApproved: true,
	}
	require.NoError(t, platformAllowed(ok))

	unlisted := ok
	unlisted.Listed = false
	require.ErrorIs(t, platformAllowed(unlisted), model.ErrUnauthorized)

	unapproved := ok
	unapproved.RegistryApproved = false
	require.ErrorIs(t, platformAllowed(unapproved), model.ErrUnauthorized)

	otherRegistry := ok
	otherRegistry.AllowlistAsset = common.HexToAddress("0xf3")
	require.ErrorIs(t, platformAllowed(otherRegistry), model.ErrUnauthorized)
}

func TestOwnerDelegated(t *testing.T) {
	ok := delegationState{
		TokenID:         big.NewInt(0),
		Seller:          seller,
		Owner:           seller,
		Price:           big.NewInt(500),
		Royalty:         big.NewInt(25),
		BuyerAllowance:  big.NewInt(500),
		SellerAllowance: big.NewInt(25),
	}
	require.NoError(t, ownerDelegated(ok))

	notOwner := ok
	notOwner.Owner = buyer
	require.ErrorIs(t, ownerDelegated(notOwner), model.ErrInvalidAsset)

	shortBuyer := ok
	shortBuyer.BuyerAllowance = big.NewInt(499)
	require.ErrorIs(t, ownerDelegated(shortBuyer), model.ErrInsufficientAllowance)

	shortSeller := ok
	shortSeller.SellerAllowance = big.NewInt(24)
	require.ErrorIs(t, ownerDelegated(shortSeller), model.ErrInsufficientAllowance)
}
