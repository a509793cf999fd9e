package access

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"propertyBank/internal/model"
	"propertyBank/internal/txn"
)

// OperatorAllowlist lists the operators trusted to move tokens of one
// unique-asset registry without per-token owner approval. Unknown operators
// are disallowed.
type OperatorAllowlist struct {
	asset  common.Address
	roles  RoleChecker
	coord  *txn.Coordinator
	logger *zap.Logger

	mu      sync.RWMutex
	allowed map[common.Address]struct{}
}

// NewOperatorAllowlist builds the allowlist of asset. Holders of ADMIN in
// roles administer it.
func NewOperatorAllowlist(asset common.Address, roles RoleChecker, coord *txn.Coordinator, logger *zap.Logger) *OperatorAllowlist {
	if logger == nil {
		logger = zap.NewNop()
	}
	if coord == nil {
		coord = txn.NewCoordinator(logger)
	}
	return &OperatorAllowlist{
		asset:   asset,
		roles:   roles,
		coord:   coord,
		logger:  logger,
		allowed: make(map[common.Address]struct{}),
	}
}

// Asset returns the unique-asset registry this allowlist guards.
func (a *OperatorAllowlist) Asset() common.Address {
	return a.asset
}

func (a *OperatorAllowlist) IsAllowed(operator common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.allowed[operator]
	return ok
}

// Operators lists the allowed operators ordered by address.
func (a *OperatorAllowlist) Operators() []common.Address {
	a.mu.RLock()
	operators := lo.Keys(a.allowed)
	a.mu.RUnlock()
	sort.Slice(operators, func(i, j int) bool {
		return bytes.Compare(operators[i][:], operators[j][:]) < 0
	})
	return operators
}

func (a *OperatorAllowlist) SetAllowed(ctx context.Context, caller, operator common.Address, allowed bool) error {
	return a.coord.Do(ctx, "set_operator_allowed", func(ctx context.Context) error {
		if err := Require(a.roles, caller, model.RoleAdmin); err != nil {
			return err
		}

		a.mu.Lock()
		_, was := a.allowed[operator]
		if allowed {
			a.allowed[operator] = struct{}{}
		} else {
			delete(a.allowed, operator)
		}
		a.mu.Unlock()

		if was == allowed {
			return nil
		}
		txn.Record(ctx, func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if was {
				a.allowed[operator] = struct{}{}
			} else {
				delete(a.allowed, operator)
			}
		})

		a.logger.Info("operator allowlist updated",
			zap.String("asset", a.asset.Hex()),
			zap.String("operator", operator.Hex()),
			zap.Bool("allowed", allowed),
		)
		return nil
	})
}
