package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"propertyBank/internal/access"
	"propertyBank/internal/model"
	"propertyBank/internal/txn"
)

func newRegistry(t *testing.T) *PropertyRegistry {
	t.Helper()
	roles := access.NewRegistry(alice, nil, nil)
	return NewPropertyRegistry(common.HexToAddress("0xcc"), "PROP", roles, nil)
}

func TestPropertyMintAndRoyalty(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	require.NoError(t, reg.Mint(ctx, alice, bob, big.NewInt(0), alice, 500))

	owner, err := reg.OwnerOf(ctx, big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, bob, owner)

	receiver, amount, err := reg.RoyaltyInfo(ctx, big.NewInt(0), big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, alice, receiver)
	require.Equal(t, "50", amount.String())

	err = reg.Mint(ctx, alice, bob, big.NewInt(0), alice, 500)
	require.ErrorIs(t, err, model.ErrInvalidAsset)

	err = reg.Mint(ctx, bob, bob, big.NewInt(1), alice, 500)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = reg.OwnerOf(ctx, big.NewInt(9))
	require.ErrorIs(t, err, model.ErrInvalidAsset)
}

func TestPropertyTransferAuthorization(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	id := big.NewInt(7)
	require.NoError(t, reg.Mint(ctx, alice, bob, id, alice, 500))

	err := reg.TransferFrom(ctx, spender, bob, alice, id)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	require.NoError(t, reg.SetApprovedOperator(ctx, alice, spender, true))
	ok, err := reg.IsApprovedOperator(ctx, spender)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, reg.TransferFrom(ctx, spender, bob, alice, id))
	require.Equal(t, 1, reg.BalanceOf(alice))
	require.Equal(t, 0, reg.BalanceOf(bob))

	err = reg.TransferFrom(ctx, spender, bob, alice, id)
	require.ErrorIs(t, err, model.ErrInvalidAsset)
}

func TestPropertyApprovalClearedOnTransfer(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	id := big.NewInt(1)
	require.NoError(t, reg.Mint(ctx, alice, bob, id, alice, 0))

	require.NoError(t, reg.Approve(ctx, bob, spender, id))
	require.NoError(t, reg.TransferFrom(ctx, spender, bob, alice, id))

	err := reg.TransferFrom(ctx, spender, alice, bob, id)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestPropertyTransferRollback(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	id := big.NewInt(3)
	require.NoError(t, reg.Mint(ctx, alice, bob, id, alice, 0))

	boom := errors.New("boom")
	err := txn.NewCoordinator(nil).Do(ctx, "test", func(ctx context.Context) error {
		require.NoError(t, reg.TransferFrom(ctx, bob, bob, alice, id))
		return boom
	})
	require.ErrorIs(t, err, boom)

	owner, err := reg.OwnerOf(ctx, id)
	require.NoError(t, err)
	require.Equal(t, bob, owner)
}
