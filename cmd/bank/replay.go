package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"propertyBank/internal/bank"
	"propertyBank/internal/config"
	"propertyBank/internal/scenario"
	"propertyBank/internal/storage"
	"propertyBank/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}

	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}
	worldCfg, err := sc.Config()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := storage.Fanout{}
	if cfg.Out != "" {
		jsonl := storage.NewJsonlStorage(cfg.Out)
		defer jsonl.Close()
		sinks = append(sinks, jsonl)
	}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	world, err := bank.NewWorld(ctx, worldCfg, sinks, logger)
	if err != nil {
		return err
	}

	logger.Info("replay start",
		zap.String("scenario", sc.Name),
		zap.Int("steps", len(sc.Steps)),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", store != nil),
	)

	res, err := scenario.NewRunner(sc, world, logger.Named("scenario")).Run(ctx)
	if err != nil {
		return err
	}

	pools, positions, err := world.Staking.Snapshot(ctx)
	if err != nil {
		return err
	}

	if store != nil {
		if err := store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("write pools: %w", err)
		}
		if err := store.ReplacePositions(ctx, positions); err != nil {
			return fmt.Errorf("write positions: %w", err)
		}
	}

	logger.Info("replay done",
		zap.Int("steps", res.Steps),
		zap.Int("expected_failures", res.ExpectedFailures),
		zap.Int("settlements", len(res.Settlements)),
		zap.String("yield_paid", scenario.FormatAmount(res.YieldPaid, world.Currency.Decimals())),
		zap.Int("pools", len(pools)),
		zap.Int("positions", len(positions)),
	)
	return nil
}
