package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "bank",
		Short:        "Property bank settlement and staking engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a scenario file against a fresh bank",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("scenario", "", "scenario YAML path")
	replayCmd.Flags().String("out", "./data/settlements.jsonl", "settlement records JSONL path")
	replayCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for settlements and staking snapshots")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Read Chainlink AggregatorV3 price feeds",
		RunE:  runPrice,
	}

	priceCmd.Flags().String("rpc", "", "RPC URL")
	priceCmd.Flags().StringSlice("feed", nil, "feed addresses (comma-separated)")
	priceCmd.Flags().Duration("max-age", 24*time.Hour, "reject answers older than this, 0 disables")
	priceCmd.Flags().Int("max-retries", 3, "maximum retry attempts per call")
	priceCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	priceCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(priceCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
