package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"propertyBank/internal/model"
	"propertyBank/internal/txn"
)

var _ Fungible = (*Token)(nil)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Token is an in-memory ERC-20 style ledger. Mutations made inside a txn
// operation are journaled and undone on rollback.
type Token struct {
	address  common.Address
	symbol   string
	decimals uint8
	logger   *zap.Logger

	mu          sync.RWMutex
	balances    map[common.Address]*big.Int
	allowances  map[allowanceKey]*big.Int
	totalSupply *big.Int
}

func NewToken(address common.Address, symbol string, decimals uint8, logger *zap.Logger) *Token {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Token{
		address:     address,
		symbol:      symbol,
		decimals:    decimals,
		logger:      logger,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[allowanceKey]*big.Int),
		totalSupply: big.NewInt(0),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

func (t *Token) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return zeroIfNil(t.balances[account]), nil
}

func (t *Token) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return zeroIfNil(t.allowances[allowanceKey{owner: owner, spender: spender}]), nil
}

// Mint credits amount to account and grows the supply.
func (t *Token) Mint(ctx context.Context, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.setBalance(ctx, to, new(big.Int).Add(zeroIfNil(t.balances[to]), amount))

	prevSupply := t.totalSupply
	t.totalSupply = new(big.Int).Add(prevSupply, amount)
	txn.Record(ctx, func() {
		t.mu.Lock()
		t.totalSupply = prevSupply
		t.mu.Unlock()
	})
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (t *Token) Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowance(ctx, allowanceKey{owner: owner, spender: spender}, new(big.Int).Set(amount))
	return nil
}

func (t *Token) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(ctx, from, to, amount)
}

func (t *Token) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := allowanceKey{owner: from, spender: spender}
	allowance := zeroIfNil(t.allowances[key])
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allows %s to spend %s %s, need %s",
			model.ErrInsufficientAllowance, from.Hex(), spender.Hex(), allowance, t.symbol, amount)
	}
	if err := t.move(ctx, from, to, amount); err != nil {
		return err
	}
	t.setAllowance(ctx, key, allowance.Sub(allowance, amount))
	return nil
}

// move must be called with t.mu held.
func (t *Token) move(ctx context.Context, from, to common.Address, amount *big.Int) error {
	balance := zeroIfNil(t.balances[from])
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, need %s",
			model.ErrInsufficientBalance, from.Hex(), balance, t.symbol, amount)
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	t.setBalance(ctx, from, balance.Sub(balance, amount))
	t.setBalance(ctx, to, new(big.Int).Add(zeroIfNil(t.balances[to]), amount))
	return nil
}

func (t *Token) setBalance(ctx context.Context, account common.Address, value *big.Int) {
	prev, had := t.balances[account]
	t.balances[account] = value
	txn.Record(ctx, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if had {
			t.balances[account] = prev
		} else {
			delete(t.balances, account)
		}
	})
}

func (t *Token) setAllowance(ctx context.Context, key allowanceKey, value *big.Int) {
	prev, had := t.allowances[key]
	t.allowances[key] = value
	txn.Record(ctx, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if had {
			t.allowances[key] = prev
		} else {
			delete(t.allowances, key)
		}
	})
}
