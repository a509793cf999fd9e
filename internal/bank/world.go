package bank

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"propertyBank/internal/access"
	"propertyBank/internal/ledger"
	"propertyBank/internal/model"
	"propertyBank/internal/oracle"
	"propertyBank/internal/settlement"
	"propertyBank/internal/staking"
	"propertyBank/internal/txn"
)

// TokenSpec describes one fungible asset of the world.
type TokenSpec struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Config is the bootstrap surface: identities and parameters fixed at
// construction.
type Config struct {
	Deployer common.Address
	// Bank is the settlement engine's address.
	Bank    common.Address
	Staking common.Address

	Properties     common.Address
	PropertySymbol string

	// Currency is both the settlement asset and the staking reward token.
	Currency TokenSpec
	Tokens   []TokenSpec

	NativeSymbol     string
	RewardFeed       common.Address
	BaseYieldPercent uint64
	MaxPriceAge      time.Duration
	Start            time.Time
}

func (c Config) validate() error {
	named := map[string]common.Address{
		"deployer":   c.Deployer,
		"bank":       c.Bank,
		"staking":    c.Staking,
		"properties": c.Properties,
		"currency":   c.Currency.Address,
	}
	for name, addr := range named {
		if (addr == common.Address{}) {
			return fmt.Errorf("bootstrap: %s address is required", name)
		}
	}
	if c.Currency.Symbol == "" {
		return fmt.Errorf("bootstrap: currency symbol is required")
	}

	seen := map[string]bool{}
	for _, tok := range append([]TokenSpec{c.Currency}, c.Tokens...) {
		if (tok.Address == common.Address{}) || tok.Address == model.NativeAsset {
			return fmt.Errorf("bootstrap: token %q has an invalid address", tok.Symbol)
		}
		for _, key := range []string{strings.ToUpper(tok.Symbol), tok.Address.Hex()} {
			if seen[key] {
				return fmt.Errorf("bootstrap: token %s is declared twice", key)
			}
			seen[key] = true
		}
	}
	return nil
}

// World wires every component around one shared transaction coordinator.
type World struct {
	cfg    Config
	logger *zap.Logger

	Coord         *txn.Coordinator
	Clock         *ManualClock
	Roles         *access.Registry
	PropertyRoles *access.Registry
	Currency      *ledger.Token
	Tokens        *ledger.Directory
	Native        *ledger.NativeBank
	Properties    *ledger.PropertyRegistry
	Allowlist     *access.OperatorAllowlist
	Feeds         *oracle.StaticFeeds
	Engine        *settlement.Engine
	Staking       *staking.Manager

	symbols map[string]*ledger.Token
}

// NewWorld bootstraps a world: the deployer holds ADMIN and BANKER, the
// bank may mint properties, and nothing is allow-listed yet.
func NewWorld(ctx context.Context, cfg Config, sink settlement.Sink, logger *zap.Logger) (*World, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}
	if cfg.PropertySymbol == "" {
		cfg.PropertySymbol = "PROP"
	}
	if cfg.NativeSymbol == "" {
		cfg.NativeSymbol = "ETH"
	}

	coord := txn.NewCoordinator(logger.Named("txn"))
	w := &World{
		cfg:     cfg,
		logger:  logger,
		Coord:   coord,
		Clock:   NewManualClock(cfg.Start),
		Native:  ledger.NewNativeBank(cfg.NativeSymbol),
		Feeds:   oracle.NewStaticFeeds(),
		Tokens:  ledger.NewDirectory(),
		symbols: make(map[string]*ledger.Token),
	}

	w.Roles = access.NewRegistry(cfg.Deployer, coord, logger.Named("roles"))
	w.PropertyRoles = access.NewRegistry(cfg.Deployer, coord, logger.Named("property_roles"))

	for _, tok := range append([]TokenSpec{cfg.Currency}, cfg.Tokens...) {
		token := ledger.NewToken(tok.Address, tok.Symbol, tok.Decimals, logger.Named("token"))
		w.Tokens.Register(token)
		w.symbols[strings.ToUpper(tok.Symbol)] = token
	}
	w.Currency = w.symbols[strings.ToUpper(cfg.Currency.Symbol)]

	w.Properties = ledger.NewPropertyRegistry(cfg.Properties, cfg.PropertySymbol, w.PropertyRoles, logger.Named("properties"))
	w.Allowlist = access.NewOperatorAllowlist(cfg.Properties, w.PropertyRoles, coord, logger.Named("allowlist"))

	w.Engine = settlement.NewEngine(
		settlement.Config{Address: cfg.Bank},
		w.Roles,
		w.Allowlist,
		w.Currency,
		w.Properties,
		coord,
		sink,
		logger.Named("settlement"),
		settlement.WithClock(w.Clock.Now),
	)
	w.Staking = staking.NewManager(
		staking.Config{
			Address:          cfg.Staking,
			RewardFeed:       cfg.RewardFeed,
			BaseYieldPercent: cfg.BaseYieldPercent,
			NativeSymbol:     cfg.NativeSymbol,
			MaxPriceAge:      cfg.MaxPriceAge,
		},
		w.Roles,
		w.Feeds,
		w.Currency,
		w.Native,
		w.Tokens,
		coord,
		logger.Named("staking"),
		staking.WithClock(w.Clock.Now),
	)

	err := coord.Do(ctx, "bootstrap", func(ctx context.Context) error {
		if err := w.Roles.GrantRole(ctx, cfg.Deployer, model.RoleBanker, cfg.Deployer); err != nil {
			return err
		}
		return w.PropertyRoles.GrantRole(ctx, cfg.Deployer, model.RoleMinter, cfg.Bank)
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap roles: %w", err)
	}
	return w, nil
}

func (w *World) Config() Config {
	return w.cfg
}

// Token resolves a fungible token by symbol or address.
func (w *World) Token(ref string) (*ledger.Token, error) {
	if token, ok := w.symbols[strings.ToUpper(strings.TrimSpace(ref))]; ok {
		return token, nil
	}
	if common.IsHexAddress(ref) {
		if asset, ok := w.Tokens.Lookup(common.HexToAddress(ref)); ok {
			if token, ok := asset.(*ledger.Token); ok {
				return token, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unknown token %q", model.ErrInvalidAsset, ref)
}

// Asset resolves a staking asset: the native symbol, "native", a token
// symbol or an address.
func (w *World) Asset(ref string) (common.Address, error) {
	trimmed := strings.TrimSpace(ref)
	if strings.EqualFold(trimmed, "native") || strings.EqualFold(trimmed, w.cfg.NativeSymbol) {
		return model.NativeAsset, nil
	}
	if common.IsHexAddress(trimmed) && common.HexToAddress(trimmed) == model.NativeAsset {
		return model.NativeAsset, nil
	}
	token, err := w.Token(trimmed)
	if err != nil {
		return common.Address{}, err
	}
	return token.Address(), nil
}

// Mint credits fungible tokens outside of any role check, as a faucet.
func (w *World) Mint(ctx context.Context, token *ledger.Token, to common.Address, amount *big.Int) error {
	return w.Coord.Do(ctx, "mint", func(ctx context.Context) error {
		return token.Mint(ctx, to, amount)
	})
}

// CreditNative credits native balance, as a genesis allocation.
func (w *World) CreditNative(ctx context.Context, to common.Address, amount *big.Int) error {
	return w.Coord.Do(ctx, "credit_native", func(ctx context.Context) error {
		return w.Native.Credit(ctx, to, amount)
	})
}

func (w *World) Approve(ctx context.Context, token *ledger.Token, owner, spender common.Address, amount *big.Int) error {
	return w.Coord.Do(ctx, "approve", func(ctx context.Context) error {
		return token.Approve(ctx, owner, spender, amount)
	})
}

// MintProperty creates a property token. The caller needs MINTER or ADMIN
// in the property roles.
func (w *World) MintProperty(ctx context.Context, caller, to common.Address, tokenID *big.Int, receiver common.Address, royaltyBps uint16) error {
	return w.Coord.Do(ctx, "mint_property", func(ctx context.Context) error {
		return w.Properties.Mint(ctx, caller, to, tokenID, receiver, royaltyBps)
	})
}

// AllowOperator sets the platform allowlist entry and the registry's own
// operator approval together.
func (w *World) AllowOperator(ctx context.Context, caller, operator common.Address, allowed bool) error {
	return w.Coord.Do(ctx, "allow_operator", func(ctx context.Context) error {
		if err := w.Allowlist.SetAllowed(ctx, caller, operator, allowed); err != nil {
			return err
		}
		return w.Properties.SetApprovedOperator(ctx, caller, operator, allowed)
	})
}

// SetPrice publishes a feed answer at the current clock time.
func (w *World) SetPrice(feed common.Address, value *big.Int, decimals uint8) {
	w.Feeds.Set(feed, value, decimals, w.Clock.Now())
}

// Advance moves world time forward.
func (w *World) Advance(d time.Duration) time.Time {
	now := w.Clock.Advance(d)
	w.logger.Debug("clock advanced", zap.Duration("by", d), zap.Time("now", now))
	return now
}

// Roleset returns the role registry named "bank" or "property".
func (w *World) Roleset(name string) (*access.Registry, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bank":
		return w.Roles, nil
	case "property", "properties":
		return w.PropertyRoles, nil
	default:
		return nil, fmt.Errorf("unknown role registry %q", name)
	}
}
