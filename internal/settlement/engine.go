package settlement

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"propertyBank/internal/access"
	"propertyBank/internal/ledger"
	"propertyBank/internal/model"
	"propertyBank/internal/txn"
)

// Allowlist is the platform-level operator check for one registry.
type Allowlist interface {
	Asset() common.Address
	IsAllowed(operator common.Address) bool
}

// Sink receives settlement records. A write error fails the settlement.
type Sink interface {
	PutSettlements(ctx context.Context, records []model.SettlementRecord) error
}

type Config struct {
	// Address is the engine's identity as spender and operator.
	Address common.Address
}

// Engine settles property sales: currency, royalty and ownership move
// together or not at all.
type Engine struct {
	cfg       Config
	roles     access.RoleChecker
	allowlist Allowlist
	currency  ledger.Fungible
	registry  ledger.NonFungible
	coord     *txn.Coordinator
	sink      Sink
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

func NewEngine(
	cfg Config,
	roles access.RoleChecker,
	allowlist Allowlist,
	currency ledger.Fungible,
	registry ledger.NonFungible,
	coord *txn.Coordinator,
	sink Sink,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if coord == nil {
		coord = txn.NewCoordinator(logger)
	}
	e := &Engine{
		cfg:       cfg,
		roles:     roles,
		allowlist: allowlist,
		currency:  currency,
		registry:  registry,
		coord:     coord,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Address() common.Address {
	return e.cfg.Address
}

// PropertyTransfer sells tokenID from seller to buyer for price in the
// settlement asset. The seller additionally pays the token's royalty on
// price to the royalty receiver.
func (e *Engine) PropertyTransfer(
	ctx context.Context,
	caller, seller, buyer common.Address,
	tokenID, price *big.Int,
) (model.SettlementRecord, error) {
	var record model.SettlementRecord
	err := e.coord.Do(ctx, "property_transfer", func(ctx context.Context) error {
		var err error
		record, err = e.settle(ctx, caller, seller, buyer, tokenID, price)
		return err
	})
	if err != nil {
		e.logger.Debug("settlement rejected",
			zap.String("caller", caller.Hex()),
			zap.String("seller", seller.Hex()),
			zap.String("buyer", buyer.Hex()),
			zap.Stringer("token_id", tokenID),
			zap.Stringer("price", price),
			zap.Error(err),
		)
		return model.SettlementRecord{}, err
	}

	e.logger.Info("property settled",
		zap.String("id", record.ID),
		zap.String("seller", record.Seller.Hex()),
		zap.String("buyer", record.Buyer.Hex()),
		zap.Stringer("token_id", record.TokenID),
		zap.Stringer("price", record.Price),
		zap.Stringer("royalty", record.RoyaltyAmount),
	)
	return record, nil
}

func (e *Engine) settle(
	ctx context.Context,
	caller, seller, buyer common.Address,
	tokenID, price *big.Int,
) (model.SettlementRecord, error) {
	if err := access.Require(e.roles, caller, model.RoleBanker, model.RoleAdmin); err != nil {
		return model.SettlementRecord{}, err
	}
	if e.currency == nil || e.registry == nil {
		return model.SettlementRecord{}, fmt.Errorf("%w: settlement asset or registry not configured", model.ErrInvalidAsset)
	}

	opState, err := e.operatorState(ctx)
	if err != nil {
		return model.SettlementRecord{}, err
	}
	if err := platformAllowed(opState); err != nil {
		return model.SettlementRecord{}, err
	}

	if price == nil || price.Sign() <= 0 {
		return model.SettlementRecord{}, fmt.Errorf("%w: price must be positive", model.ErrZeroAmount)
	}
	if tokenID == nil {
		return model.SettlementRecord{}, fmt.Errorf("%w: missing token id", model.ErrInvalidAsset)
	}
	if (buyer == common.Address{}) || buyer == seller {
		return model.SettlementRecord{}, fmt.Errorf("%w: invalid buyer %s", model.ErrInvalidAsset, buyer.Hex())
	}

	owner, err := e.registry.OwnerOf(ctx, tokenID)
	if err != nil {
		return model.SettlementRecord{}, err
	}
	receiver, royalty, err := e.registry.RoyaltyInfo(ctx, tokenID, price)
	if err != nil {
		return model.SettlementRecord{}, err
	}
	if royalty == nil {
		royalty = big.NewInt(0)
	}
	if royalty.Sign() < 0 || (royalty.Sign() > 0 && receiver == common.Address{}) {
		return model.SettlementRecord{}, fmt.Errorf("%w: token %s has an invalid royalty", model.ErrInvalidAsset, tokenID)
	}
	buyerAllowance, err := e.currency.Allowance(ctx, buyer, e.cfg.Address)
	if err != nil {
		return model.SettlementRecord{}, err
	}
	sellerAllowance, err := e.currency.Allowance(ctx, seller, e.cfg.Address)
	if err != nil {
		return model.SettlementRecord{}, err
	}
	if err := ownerDelegated(delegationState{
		TokenID:         tokenID,
		Seller:          seller,
		Owner:           owner,
		Price:           price,
		Royalty:         royalty,
		BuyerAllowance:  buyerAllowance,
		SellerAllowance: sellerAllowance,
	}); err != nil {
		return model.SettlementRecord{}, err
	}

	if err := e.currency.TransferFrom(ctx, e.cfg.Address, buyer, seller, price); err != nil {
		return model.SettlementRecord{}, fmt.Errorf("pay seller: %w", err)
	}
	if royalty.Sign() > 0 {
		if err := e.currency.TransferFrom(ctx, e.cfg.Address, seller, receiver, royalty); err != nil {
			return model.SettlementRecord{}, fmt.Errorf("pay royalty: %w", err)
		}
	}
	if err := e.registry.TransferFrom(ctx, e.cfg.Address, seller, buyer, tokenID); err != nil {
		return model.SettlementRecord{}, fmt.Errorf("transfer token: %w", err)
	}

	record := model.SettlementRecord{
		ID:              e.newID(),
		Registry:        e.registry.Address(),
		Seller:          seller,
		Buyer:           buyer,
		TokenID:         new(big.Int).Set(tokenID),
		Price:           new(big.Int).Set(price),
		RoyaltyReceiver: receiver,
		RoyaltyAmount:   new(big.Int).Set(royalty),
		Operator:        e.cfg.Address,
		Timestamp:       e.now().UTC(),
	}
	if e.sink != nil {
		if err := e.sink.PutSettlements(ctx, []model.SettlementRecord{record}); err != nil {
			return model.SettlementRecord{}, fmt.Errorf("write settlement record: %w", err)
		}
	}
	return record, nil
}

func (e *Engine) operatorState(ctx context.Context) (operatorState, error) {
	s := operatorState{
		Engine:   e.cfg.Address,
		Registry: e.registry.Address(),
	}
	if e.allowlist != nil {
		s.AllowlistAsset = e.allowlist.Asset()
		s.Listed = e.allowlist.IsAllowed(e.cfg.Address)
	}
	approved, err := e.registry.IsApprovedOperator(ctx, e.cfg.Address)
	if err != nil {
		return operatorState{}, err
	}
	s.RegistryApproved = approved
	return s, nil
}
