package access

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"propertyBank/internal/model"
	"propertyBank/internal/txn"
)

// RoleChecker answers role membership questions.
type RoleChecker interface {
	HasRole(role model.Role, account common.Address) bool
}

// Require passes when account holds at least one of roles.
func Require(checker RoleChecker, account common.Address, roles ...model.Role) error {
	if checker != nil {
		for _, role := range roles {
			if checker.HasRole(role, account) {
				return nil
			}
		}
	}
	names := lo.Map(roles, func(role model.Role, _ int) string { return role.String() })
	return fmt.Errorf("%w: %s lacks %v", model.ErrUnauthorized, account.Hex(), names)
}

// Registry is the role membership table. Every role is administered by
// another role, ADMIN unless changed with SetRoleAdmin.
type Registry struct {
	coord  *txn.Coordinator
	logger *zap.Logger

	mu      sync.RWMutex
	members map[model.Role]map[common.Address]struct{}
	admins  map[model.Role]model.Role
}

// NewRegistry builds a registry whose first ADMIN is deployer.
func NewRegistry(deployer common.Address, coord *txn.Coordinator, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if coord == nil {
		coord = txn.NewCoordinator(logger)
	}
	r := &Registry{
		coord:   coord,
		logger:  logger,
		members: make(map[model.Role]map[common.Address]struct{}),
		admins:  make(map[model.Role]model.Role),
	}
	r.add(context.Background(), model.RoleAdmin, deployer)
	return r
}

func (r *Registry) HasRole(role model.Role, account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[role][account]
	return ok
}

// RoleAdmin returns the role whose holders may grant and revoke role.
func (r *Registry) RoleAdmin(role model.Role) model.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if admin, ok := r.admins[role]; ok {
		return admin
	}
	return model.RoleAdmin
}

// Members lists the holders of role in address order.
func (r *Registry) Members(role model.Role) []common.Address {
	r.mu.RLock()
	members := lo.Keys(r.members[role])
	r.mu.RUnlock()
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i][:], members[j][:]) < 0
	})
	return members
}

// GrantRole gives role to account. Granting a held role is a no-op.
func (r *Registry) GrantRole(ctx context.Context, caller common.Address, role model.Role, account common.Address) error {
	return r.coord.Do(ctx, "grant_role", func(ctx context.Context) error {
		if err := Require(r, caller, r.RoleAdmin(role)); err != nil {
			return err
		}
		if r.add(ctx, role, account) {
			r.logger.Info("role granted", zap.Stringer("role", role), zap.String("account", account.Hex()), zap.String("sender", caller.Hex()))
		}
		return nil
	})
}

// RevokeRole removes role from account. Revoking an absent role is a no-op.
func (r *Registry) RevokeRole(ctx context.Context, caller common.Address, role model.Role, account common.Address) error {
	return r.coord.Do(ctx, "revoke_role", func(ctx context.Context) error {
		if err := Require(r, caller, r.RoleAdmin(role)); err != nil {
			return err
		}
		if r.remove(ctx, role, account) {
			r.logger.Info("role revoked", zap.Stringer("role", role), zap.String("account", account.Hex()), zap.String("sender", caller.Hex()))
		}
		return nil
	})
}

// RenounceRole drops a role held by the caller.
func (r *Registry) RenounceRole(ctx context.Context, caller common.Address, role model.Role) error {
	return r.coord.Do(ctx, "renounce_role", func(ctx context.Context) error {
		if r.remove(ctx, role, caller) {
			r.logger.Info("role renounced", zap.Stringer("role", role), zap.String("account", caller.Hex()))
		}
		return nil
	})
}

// SetRoleAdmin changes the administering role of role. The caller must hold
// the current admin role.
func (r *Registry) SetRoleAdmin(ctx context.Context, caller common.Address, role, adminRole model.Role) error {
	return r.coord.Do(ctx, "set_role_admin", func(ctx context.Context) error {
		if err := Require(r, caller, r.RoleAdmin(role)); err != nil {
			return err
		}

		r.mu.Lock()
		prev, had := r.admins[role]
		r.admins[role] = adminRole
		r.mu.Unlock()

		txn.Record(ctx, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if had {
				r.admins[role] = prev
			} else {
				delete(r.admins, role)
			}
		})
		return nil
	})
}

func (r *Registry) add(ctx context.Context, role model.Role, account common.Address) bool {
	r.mu.Lock()
	set, ok := r.members[role]
	if !ok {
		set = make(map[common.Address]struct{})
		r.members[role] = set
	}
	if _, held := set[account]; held {
		r.mu.Unlock()
		return false
	}
	set[account] = struct{}{}
	r.mu.Unlock()

	txn.Record(ctx, func() {
		r.mu.Lock()
		delete(r.members[role], account)
		r.mu.Unlock()
	})
	return true
}

func (r *Registry) remove(ctx context.Context, role model.Role, account common.Address) bool {
	r.mu.Lock()
	if _, held := r.members[role][account]; !held {
		r.mu.Unlock()
		return false
	}
	delete(r.members[role], account)
	r.mu.Unlock()

	txn.Record(ctx, func() {
		r.mu.Lock()
		r.members[role][account] = struct{}{}
		r.mu.Unlock()
	})
	return true
}
