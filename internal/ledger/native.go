package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"propertyBank/internal/model"
	"propertyBank/internal/txn"
)

var _ Native = (*NativeBank)(nil)

// NativeBank holds native balances for the in-memory world.
type NativeBank struct {
	symbol string

	mu       sync.RWMutex
	balances map[common.Address]*big.Int
}

func NewNativeBank(symbol string) *NativeBank {
	return &NativeBank{symbol: symbol, balances: make(map[common.Address]*big.Int)}
}

func (n *NativeBank) Symbol() string { return n.symbol }

func (n *NativeBank) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return zeroIfNil(n.balances[account]), nil
}

// Credit adds amount to account, as a genesis allocation or faucet would.
func (n *NativeBank) Credit(ctx context.Context, account common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.set(ctx, account, new(big.Int).Add(zeroIfNil(n.balances[account]), amount))
	return nil
}

func (n *NativeBank) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	balance := zeroIfNil(n.balances[from])
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, need %s",
			model.ErrInsufficientBalance, from.Hex(), balance, n.symbol, amount)
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	n.set(ctx, from, balance.Sub(balance, amount))
	n.set(ctx, to, new(big.Int).Add(zeroIfNil(n.balances[to]), amount))
	return nil
}

func (n *NativeBank) set(ctx context.Context, account common.Address, value *big.Int) {
	prev, had := n.balances[account]
	n.balances[account] = value
	txn.Record(ctx, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if had {
			n.balances[account] = prev
		} else {
			delete(n.balances, account)
		}
	})
}
