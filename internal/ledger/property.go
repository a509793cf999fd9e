package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"propertyBank/internal/access"
	"propertyBank/internal/model"
	"propertyBank/internal/txn"
)

var _ NonFungible = (*PropertyRegistry)(nil)

// PropertyRegistry is an in-memory ERC-721 registry with ERC-2981 royalties.
// Minting needs MINTER and operator approval needs ADMIN in its own roles.
type PropertyRegistry struct {
	address common.Address
	symbol  string
	roles   access.RoleChecker
	logger  *zap.Logger

	mu        sync.RWMutex
	tokens    map[string]model.UniqueAsset
	approvals map[string]common.Address
	operators map[common.Address]struct{}
}

func NewPropertyRegistry(address common.Address, symbol string, roles access.RoleChecker, logger *zap.Logger) *PropertyRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertyRegistry{
		address:   address,
		symbol:    symbol,
		roles:     roles,
		logger:    logger,
		tokens:    make(map[string]model.UniqueAsset),
		approvals: make(map[string]common.Address),
		operators: make(map[common.Address]struct{}),
	}
}

func (p *PropertyRegistry) Address() common.Address { return p.address }
func (p *PropertyRegistry) Symbol() string          { return p.symbol }

// Mint creates tokenID for to with fixed royalty parameters.
func (p *PropertyRegistry) Mint(ctx context.Context, caller, to common.Address, tokenID *big.Int, receiver common.Address, royaltyBps uint16) error {
	if err := access.Require(p.roles, caller, model.RoleMinter, model.RoleAdmin); err != nil {
		return err
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return fmt.Errorf("%w: invalid token id", model.ErrInvalidAsset)
	}
	if royaltyBps > model.RoyaltyDenominator {
		return fmt.Errorf("%w: royalty %d bps exceeds %d", model.ErrInvalidAsset, royaltyBps, model.RoyaltyDenominator)
	}

	key := tokenID.String()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.tokens[key]; exists {
		return fmt.Errorf("%w: token %s already minted", model.ErrInvalidAsset, key)
	}
	p.tokens[key] = model.UniqueAsset{
		TokenID:         new(big.Int).Set(tokenID),
		Owner:           to,
		RoyaltyReceiver: receiver,
		RoyaltyBps:      royaltyBps,
	}
	txn.Record(ctx, func() {
		p.mu.Lock()
		delete(p.tokens, key)
		p.mu.Unlock()
	})

	p.logger.Debug("property minted", zap.String("token_id", key), zap.String("owner", to.Hex()))
	return nil
}

// Asset returns the full record of tokenID.
func (p *PropertyRegistry) Asset(_ context.Context, tokenID *big.Int) (model.UniqueAsset, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lookup(tokenID)
}

func (p *PropertyRegistry) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	asset, err := p.Asset(ctx, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return asset.Owner, nil
}

// BalanceOf counts the tokens held by owner.
func (p *PropertyRegistry) BalanceOf(owner common.Address) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	count := 0
	for _, asset := range p.tokens {
		if asset.Owner == owner {
			count++
		}
	}
	return count
}

func (p *PropertyRegistry) RoyaltyInfo(ctx context.Context, tokenID, salePrice *big.Int) (common.Address, *big.Int, error) {
	asset, err := p.Asset(ctx, tokenID)
	if err != nil {
		return common.Address{}, nil, err
	}
	return asset.RoyaltyReceiver, asset.RoyaltyFor(salePrice), nil
}

// Approve lets spender move one token. Only the owner may approve.
func (p *PropertyRegistry) Approve(ctx context.Context, owner, spender common.Address, tokenID *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	asset, err := p.lookup(tokenID)
	if err != nil {
		return err
	}
	if asset.Owner != owner {
		return fmt.Errorf("%w: %s does not own token %s", model.ErrUnauthorized, owner.Hex(), tokenID)
	}
	p.setApproval(ctx, tokenID.String(), spender)
	return nil
}

// SetApprovedOperator toggles the registry-level approval of operator.
func (p *PropertyRegistry) SetApprovedOperator(ctx context.Context, caller, operator common.Address, approved bool) error {
	if err := access.Require(p.roles, caller, model.RoleAdmin); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, was := p.operators[operator]
	if was == approved {
		return nil
	}
	if approved {
		p.operators[operator] = struct{}{}
	} else {
		delete(p.operators, operator)
	}
	txn.Record(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if was {
			p.operators[operator] = struct{}{}
		} else {
			delete(p.operators, operator)
		}
	})
	return nil
}

func (p *PropertyRegistry) IsApprovedOperator(_ context.Context, operator common.Address) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.operators[operator]
	return ok, nil
}

// TransferFrom moves tokenID from `from` to `to`. The operator must be the
// owner, the token's approved spender or a registry-approved operator.
func (p *PropertyRegistry) TransferFrom(ctx context.Context, operator, from, to common.Address, tokenID *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	asset, err := p.lookup(tokenID)
	if err != nil {
		return err
	}
	if asset.Owner != from {
		return fmt.Errorf("%w: token %s is owned by %s, not %s", model.ErrInvalidAsset, tokenID, asset.Owner.Hex(), from.Hex())
	}
	if (to == common.Address{}) {
		return fmt.Errorf("%w: transfer to the zero address", model.ErrInvalidAsset)
	}

	key := tokenID.String()
	_, approvedOperator := p.operators[operator]
	if operator != from && p.approvals[key] != operator && !approvedOperator {
		return fmt.Errorf("%w: %s may not move token %s", model.ErrUnauthorized, operator.Hex(), key)
	}

	prev := asset
	asset.Owner = to
	p.tokens[key] = asset
	txn.Record(ctx, func() {
		p.mu.Lock()
		p.tokens[key] = prev
		p.mu.Unlock()
	})
	p.setApproval(ctx, key, common.Address{})
	return nil
}

// lookup must be called with p.mu held.
func (p *PropertyRegistry) lookup(tokenID *big.Int) (model.UniqueAsset, error) {
	if tokenID == nil {
		return model.UniqueAsset{}, fmt.Errorf("%w: missing token id", model.ErrInvalidAsset)
	}
	asset, ok := p.tokens[tokenID.String()]
	if !ok {
		return model.UniqueAsset{}, fmt.Errorf("%w: unknown token %s", model.ErrInvalidAsset, tokenID)
	}
	return asset, nil
}

// setApproval must be called with p.mu held.
func (p *PropertyRegistry) setApproval(ctx context.Context, key string, spender common.Address) {
	prev, had := p.approvals[key]
	if (spender == common.Address{}) {
		if !had {
			return
		}
		delete(p.approvals, key)
	} else {
		p.approvals[key] = spender
	}
	txn.Record(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if had {
			p.approvals[key] = prev
		} else {
			delete(p.approvals, key)
		}
	})
}
