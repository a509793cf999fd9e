package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"propertyBank/internal/chain"
	"propertyBank/internal/config"
	"propertyBank/internal/oracle"
)

func runPrice(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPrice(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("feed list is required")
	}
	feeds := make([]common.Address, 0, len(cfg.Feeds))
	for _, raw := range cfg.Feeds {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("invalid feed address %q", raw)
		}
		feeds = append(feeds, common.HexToAddress(raw))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	now, err := chainClient.HeadTime(ctx)
	if err != nil {
		return fmt.Errorf("get head block: %w", err)
	}

	adapter := oracle.NewChainlinkFeeds(oracle.ChainlinkConfig{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, logger)

	var failed int
	for _, feed := range feeds {
		price, err := oracle.Fresh(ctx, adapter, feed, now, cfg.MaxAge)
		if err != nil {
			failed++
			logger.Error("feed rejected", zap.String("feed", feed.Hex()), zap.Error(err))
			continue
		}
		logger.Info("feed price",
			zap.Uint64("chain_id", chainID.Uint64()),
			zap.String("feed", feed.Hex()),
			zap.String("price", price.Decimal().String()),
			zap.Uint8("decimals", price.Decimals),
			zap.Time("updated_at", price.UpdatedAt),
			zap.Duration("age", now.Sub(price.UpdatedAt).Truncate(time.Second)),
		)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d feeds rejected", failed, len(feeds))
	}
	return nil
}
