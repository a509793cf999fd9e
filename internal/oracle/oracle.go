package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"propertyBank/internal/model"
)

// Adapter supplies the latest answer of a price feed.
type Adapter interface {
	LatestPrice(ctx context.Context, feed common.Address) (model.Price, error)
}

// Validate rejects answers the core must not compute with: non-positive
// values and, when maxAge > 0, answers older than maxAge at now.
func Validate(feed common.Address, price model.Price, now time.Time, maxAge time.Duration) error {
	if price.Value == nil || price.Value.Sign() <= 0 {
		return fmt.Errorf("%w: feed %s returned non-positive price", model.ErrInvalidAsset, feed.Hex())
	}
	if price.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: feed %s has no update time", model.ErrInvalidAsset, feed.Hex())
	}
	if maxAge > 0 && now.Sub(price.UpdatedAt) > maxAge {
		return fmt.Errorf("%w: feed %s is stale (updated %s)", model.ErrInvalidAsset, feed.Hex(), price.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// Fresh reads feed and validates the answer.
func Fresh(ctx context.Context, adapter Adapter, feed common.Address, now time.Time, maxAge time.Duration) (model.Price, error) {
	if adapter == nil {
		return model.Price{}, fmt.Errorf("%w: no price oracle", model.ErrInvalidAsset)
	}
	price, err := adapter.LatestPrice(ctx, feed)
	if err != nil {
		return model.Price{}, err
	}
	if err := Validate(feed, price, now, maxAge); err != nil {
		return model.Price{}, err
	}
	return price, nil
}
