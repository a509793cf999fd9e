package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "BANK"

// newViper merges defaults, BANK_* environment variables, flags and the
// config file. Without an explicit file an optional ./config.yaml is read.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// listValue reads key as a list. Entries may themselves be comma separated,
// which is how BANK_* environment variables carry lists.
func listValue(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}
	items := lo.FlatMap(v.GetStringSlice(key), func(item string, _ int) []string {
		return splitAndClean(item)
	})
	if len(items) == 0 {
		return nil
	}
	return items
}

func splitAndClean(input string) []string {
	items := lo.Compact(lo.Map(strings.Split(input, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
	if len(items) == 0 {
		return nil
	}
	return items
}
