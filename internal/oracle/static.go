package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"propertyBank/internal/model"
)

var _ Adapter = (*StaticFeeds)(nil)

// StaticFeeds serves prices published by Set. It stands in for deployed
// aggregator stubs in tests and scenarios.
type StaticFeeds struct {
	mu    sync.RWMutex
	feeds map[common.Address]model.Price
}

func NewStaticFeeds() *StaticFeeds {
	return &StaticFeeds{feeds: make(map[common.Address]model.Price)}
}

func (s *StaticFeeds) Set(feed common.Address, value *big.Int, decimals uint8, updatedAt time.Time) {
	s.mu.Lock()
	s.feeds[feed] = model.Price{Value: new(big.Int).Set(value), Decimals: decimals, UpdatedAt: updatedAt}
	s.mu.Unlock()
}

func (s *StaticFeeds) LatestPrice(_ context.Context, feed common.Address) (model.Price, error) {
	s.mu.RLock()
	price, ok := s.feeds[feed]
	s.mu.RUnlock()
	if !ok {
		return model.Price{}, fmt.Errorf("%w: unknown price feed %s", model.ErrInvalidAsset, feed.Hex())
	}
	price.Value = new(big.Int).Set(price.Value)
	return price, nil
}
