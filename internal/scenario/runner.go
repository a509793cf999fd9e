package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"propertyBank/internal/bank"
	"propertyBank/internal/ledger"
	"propertyBank/internal/model"
)

const defaultFeedDecimals = 8

var namedErrors = map[string]error{
	"unauthorized":          model.ErrUnauthorized,
	"invalidasset":          model.ErrInvalidAsset,
	"insufficientallowance": model.ErrInsufficientAllowance,
	"insufficientbalance":   model.ErrInsufficientBalance,
	"duplicatepool":         model.ErrDuplicatePool,
	"zeroamount":            model.ErrZeroAmount,
}

func namedError(name string) (error, bool) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(name))
	err, ok := namedErrors[key]
	return err, ok
}

// Result summarises a replay.
type Result struct {
	Steps            int
	ExpectedFailures int
	Settlements      []model.SettlementRecord
	YieldPaid        *big.Int
}

// Runner replays scenario steps against a world.
type Runner struct {
	sc     *Scenario
	world  *bank.World
	logger *zap.Logger
}

func NewRunner(sc *Scenario, world *bank.World, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sc: sc, world: world, logger: logger}
}

// Run executes every step in order and stops at the first step whose
// outcome differs from its expectation.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{YieldPaid: big.NewInt(0)}
	for i, step := range r.sc.Steps {
		op := strings.ToLower(strings.TrimSpace(step.Op))
		err := r.apply(ctx, op, step, &res)

		if step.Expect == "" {
			if err != nil {
				return res, fmt.Errorf("step %d (%s): %w", i+1, op, err)
			}
		} else {
			want, ok := namedError(step.Expect)
			if !ok {
				return res, fmt.Errorf("step %d (%s): unknown expected error %q", i+1, op, step.Expect)
			}
			if err == nil {
				return res, fmt.Errorf("step %d (%s): expected %s, got success", i+1, op, step.Expect)
			}
			if !errors.Is(err, want) {
				return res, fmt.Errorf("step %d (%s): expected %s, got: %w", i+1, op, step.Expect, err)
			}
			res.ExpectedFailures++
		}

		res.Steps++
		r.logger.Debug("step done", zap.Int("step", i+1), zap.String("op", op), zap.Error(err))
	}
	return res, nil
}

func (r *Runner) apply(ctx context.Context, op string, s Step, res *Result) error {
	switch op {
	case "mint":
		token, to, amount, err := r.tokenAmount(s.Token, s.To, s)
		if err != nil {
			return err
		}
		return r.world.Mint(ctx, token, to, amount)

	case "credit_native":
		to, err := r.address(s.To)
		if err != nil {
			return err
		}
		amount, err := ParseAmount(s.Amount, model.NativeDecimals, s.Raw)
		if err != nil {
			return err
		}
		return r.world.CreditNative(ctx, to, amount)

	case "approve":
		token, owner, amount, err := r.tokenAmount(s.Token, s.Owner, s)
		if err != nil {
			return err
		}
		spender, err := r.address(s.Spender)
		if err != nil {
			return err
		}
		return r.world.Approve(ctx, token, owner, spender, amount)

	case "grant_role", "revoke_role":
		roles, err := r.world.Roleset(s.Registry)
		if err != nil {
			return err
		}
		role, ok := model.ParseRole(s.Role)
		if !ok {
			return fmt.Errorf("unknown role %q", s.Role)
		}
		caller, account, err := r.pair(s.Caller, s.Account)
		if err != nil {
			return err
		}
		if op == "grant_role" {
			return roles.GrantRole(ctx, caller, role, account)
		}
		return roles.RevokeRole(ctx, caller, role, account)

	case "allow_operator":
		caller, operator, err := r.pair(s.Caller, s.Operator)
		if err != nil {
			return err
		}
		allowed := true
		if s.Allowed != nil {
			allowed = *s.Allowed
		}
		return r.world.AllowOperator(ctx, caller, operator, allowed)

	case "mint_property":
		caller, to, err := r.pair(s.Caller, s.To)
		if err != nil {
			return err
		}
		receiver, err := r.address(s.Receiver)
		if err != nil {
			return err
		}
		tokenID, err := parseTokenID(s.TokenID)
		if err != nil {
			return err
		}
		return r.world.MintProperty(ctx, caller, to, tokenID, receiver, s.RoyaltyBps)

	case "set_price":
		feed, err := parseAddress(s.Feed)
		if err != nil {
			return err
		}
		decimals := uint8(defaultFeedDecimals)
		if s.Decimals != nil {
			decimals = *s.Decimals
		}
		value, err := ParseAmount(s.Price, decimals, s.Raw)
		if err != nil {
			return err
		}
		r.world.SetPrice(feed, value, decimals)
		return nil

	case "advance":
		r.world.Advance(s.By)
		return nil

	case "add_pool":
		caller, err := r.address(s.Caller)
		if err != nil {
			return err
		}
		asset, err := r.world.Asset(s.Asset)
		if err != nil {
			return err
		}
		feed, err := parseAddress(s.Feed)
		if err != nil {
			return err
		}
		return r.world.Staking.AddPool(ctx, caller, asset, feed, s.Weight)

	case "stake", "unstake":
		caller, err := r.address(s.Caller)
		if err != nil {
			return err
		}
		asset, amount, err := r.stakeAmount(s)
		if err != nil {
			return err
		}
		if op == "stake" {
			return r.world.Staking.Stake(ctx, caller, asset, amount)
		}
		paid, err := r.world.Staking.Unstake(ctx, caller, asset, amount)
		if err != nil {
			return err
		}
		res.YieldPaid.Add(res.YieldPaid, paid)
		return nil

	case "claim":
		caller, err := r.address(s.Caller)
		if err != nil {
			return err
		}
		asset, err := r.world.Asset(s.Asset)
		if err != nil {
			return err
		}
		paid, err := r.world.Staking.ClaimYield(ctx, caller, asset)
		if err != nil {
			return err
		}
		res.YieldPaid.Add(res.YieldPaid, paid)
		return nil

	case "settle":
		caller, err := r.address(s.Caller)
		if err != nil {
			return err
		}
		seller, buyer, err := r.pair(s.Seller, s.Buyer)
		if err != nil {
			return err
		}
		tokenID, err := parseTokenID(s.TokenID)
		if err != nil {
			return err
		}
		price, err := ParseAmount(s.Price, r.world.Currency.Decimals(), s.Raw)
		if err != nil {
			return err
		}
		record, err := r.world.Engine.PropertyTransfer(ctx, caller, seller, buyer, tokenID, price)
		if err != nil {
			return err
		}
		res.Settlements = append(res.Settlements, record)
		return nil

	case "expect_balance":
		return r.expectBalance(ctx, s)

	case "expect_owner":
		owner, err := r.address(s.Owner)
		if err != nil {
			return err
		}
		tokenID, err := parseTokenID(s.TokenID)
		if err != nil {
			return err
		}
		got, err := r.world.Properties.OwnerOf(ctx, tokenID)
		if err != nil {
			return err
		}
		if got != owner {
			return fmt.Errorf("token %s owned by %s, want %s", tokenID, got.Hex(), owner.Hex())
		}
		return nil

	case "expect_properties":
		account, err := r.address(s.Account)
		if err != nil {
			return err
		}
		if s.Count == nil {
			return fmt.Errorf("count is required")
		}
		if got := r.world.Properties.BalanceOf(account); got != *s.Count {
			return fmt.Errorf("%s holds %d properties, want %d", account.Hex(), got, *s.Count)
		}
		return nil

	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
}

func (r *Runner) expectBalance(ctx context.Context, s Step) error {
	account, err := r.address(s.Account)
	if err != nil {
		return err
	}

	var (
		got      *big.Int
		decimals = model.NativeDecimals
	)
	if asset, err := r.world.Asset(s.Token); err == nil && asset == model.NativeAsset {
		got, err = r.world.Native.BalanceOf(ctx, account)
		if err != nil {
			return err
		}
	} else {
		token, err := r.world.Token(s.Token)
		if err != nil {
			return err
		}
		decimals = token.Decimals()
		if got, err = token.BalanceOf(ctx, account); err != nil {
			return err
		}
	}

	want, err := ParseAmount(s.Amount, decimals, s.Raw)
	if err != nil {
		return err
	}
	if got.Cmp(want) != 0 {
		return fmt.Errorf("%s balance of %s is %s, want %s",
			s.Token, account.Hex(), FormatAmount(got, decimals), FormatAmount(want, decimals))
	}
	return nil
}

func (r *Runner) tokenAmount(tokenRef, accountRef string, s Step) (token *ledger.Token, account common.Address, amount *big.Int, err error) {
	if token, err = r.world.Token(tokenRef); err != nil {
		return nil, common.Address{}, nil, err
	}
	if account, err = r.address(accountRef); err != nil {
		return nil, common.Address{}, nil, err
	}
	if amount, err = ParseAmount(s.Amount, token.Decimals(), s.Raw); err != nil {
		return nil, common.Address{}, nil, err
	}
	return token, account, amount, nil
}

func (r *Runner) stakeAmount(s Step) (common.Address, *big.Int, error) {
	asset, err := r.world.Asset(s.Asset)
	if err != nil {
		return common.Address{}, nil, err
	}
	decimals := model.NativeDecimals
	if asset != model.NativeAsset {
		token, err := r.world.Token(s.Asset)
		if err != nil {
			return common.Address{}, nil, err
		}
		decimals = token.Decimals()
	}
	amount, err := ParseAmount(s.Amount, decimals, s.Raw)
	if err != nil {
		return common.Address{}, nil, err
	}
	return asset, amount, nil
}

func (r *Runner) pair(a, b string) (common.Address, common.Address, error) {
	first, err := r.address(a)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	second, err := r.address(b)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return first, second, nil
}

// address resolves scenario accounts, the world's own identities and
// literal addresses.
func (r *Runner) address(ref string) (common.Address, error) {
	cfg := r.world.Config()
	switch strings.ToLower(strings.TrimSpace(ref)) {
	case "":
		return common.Address{}, fmt.Errorf("account is required")
	case "deployer":
		return cfg.Deployer, nil
	case "bank":
		return cfg.Bank, nil
	case "staking":
		return cfg.Staking, nil
	}
	return r.sc.account(ref)
}

func parseTokenID(input string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(input), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid token id %q", model.ErrInvalidAsset, input)
	}
	return id, nil
}
