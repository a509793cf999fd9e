package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadReplayPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bank.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("scenario: from-file.yaml\nout: file.jsonl\n"), 0o644))

	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	flags.String("scenario", "", "")
	flags.String("out", "", "")
	flags.String("pg-dsn", "", "")
	require.NoError(t, flags.Parse([]string{"--out", "flag.jsonl"}))

	t.Setenv("BANK_PG_DSN", "postgres://bank@localhost/bank")

	cfg, err := LoadReplay(cfgFile, flags)
	require.NoError(t, err)
	require.Equal(t, "from-file.yaml", cfg.Scenario)
	require.Equal(t, "flag.jsonl", cfg.Out)
	require.Equal(t, "postgres://bank@localhost/bank", cfg.PGDSN)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadPriceFeeds(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "bank.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("rpc: http://localhost:8545\nfeed:\n  - 0x01\n  - ' 0x02 '\n"), 0o644))

	cfg, err := LoadPrice(cfgFile, nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.RPCURL)
	require.Equal(t, []string{"0x01", "0x02"}, cfg.Feeds)
	require.Equal(t, 24*time.Hour, cfg.MaxAge)
	require.Equal(t, 3, cfg.MaxRetries)
}

func TestSplitAndClean(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitAndClean(" a, ,b "))
	require.Nil(t, splitAndClean(""))
}

func TestLoadPriceFeedsFromEnv(t *testing.T) {
	t.Setenv("BANK_FEED", "0x01, 0x02,")

	cfg, err := LoadPrice(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)

	cfg, err = LoadPrice("", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"0x01", "0x02"}, cfg.Feeds)
}
