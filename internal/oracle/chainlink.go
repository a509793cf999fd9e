package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"propertyBank/internal/model"
)

var _ Adapter = (*ChainlinkFeeds)(nil)

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainlinkConfig controls RPC retries of feed reads.
type ChainlinkConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// ChainlinkFeeds reads AggregatorV3 feeds over RPC.
type ChainlinkFeeds struct {
	cfg    ChainlinkConfig
	caller ContractCaller
	logger *zap.Logger

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

func NewChainlinkFeeds(cfg ChainlinkConfig, caller ContractCaller, logger *zap.Logger) *ChainlinkFeeds {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainlinkFeeds{
		cfg:      cfg,
		caller:   caller,
		logger:   logger,
		decimals: make(map[common.Address]uint8),
	}
}

func (c *ChainlinkFeeds) LatestPrice(ctx context.Context, feed common.Address) (model.Price, error) {
	if c.caller == nil {
		return model.Price{}, fmt.Errorf("chain client is nil")
	}

	decimals, err := c.feedDecimals(ctx, feed)
	if err != nil {
		return model.Price{}, err
	}

	values, err := c.call(ctx, feed, "latestRoundData")
	if err != nil {
		return model.Price{}, err
	}
	if len(values) != 5 {
		return model.Price{}, fmt.Errorf("latestRoundData return size %d", len(values))
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return model.Price{}, fmt.Errorf("latestRoundData answer unexpected type %T", values[1])
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok {
		return model.Price{}, fmt.Errorf("latestRoundData updatedAt unexpected type %T", values[3])
	}

	return model.Price{
		Value:     answer,
		Decimals:  decimals,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}

func (c *ChainlinkFeeds) feedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	c.mu.RLock()
	decimals, ok := c.decimals[feed]
	c.mu.RUnlock()
	if ok {
		return decimals, nil
	}

	values, err := c.call(ctx, feed, "decimals")
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals return size %d", len(values))
	}
	decimals, ok = values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals unexpected type %T", values[0])
	}

	c.mu.Lock()
	c.decimals[feed] = decimals
	c.mu.Unlock()
	return decimals, nil
}

func (c *ChainlinkFeeds) call(ctx context.Context, feed common.Address, method string) ([]interface{}, error) {
	feedABI, err := AggregatorV3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}
	data, err := feedABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var resp []byte
	policy := newRetryPolicy(c.cfg.MaxRetries, c.cfg.RetryBackoff)
	policy.onFailure = func(attempt int, wait time.Duration, err error) {
		c.logger.Warn("feed call failed",
			zap.String("feed", feed.Hex()),
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}
	err = policy.run(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.caller.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := feedABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}
