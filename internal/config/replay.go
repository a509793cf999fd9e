package config

import (
	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Scenario string
	Out      string
	PGDSN    string
	LogLevel string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":       "./data/settlements.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Scenario: v.GetString("scenario"),
		Out:      v.GetString("out"),
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
