package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ExportConfig holds configuration for the export command.
type ExportConfig struct {
	PGDSN    string
	Position string
	Out      string
	LogLevel string
}

// LoadExport merges config file, environment variables, and flags into ExportConfig.
func LoadExport(cfgFile string, flags *pflag.FlagSet) (ExportConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("MIDCURVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "./data/ledger_events.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return ExportConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return ExportConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return ExportConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := ExportConfig{
		PGDSN:    v.GetString("pg-dsn"),
		Position: v.GetString("position"),
		Out:      v.GetString("out"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
