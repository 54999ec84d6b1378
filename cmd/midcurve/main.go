package main

import (
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "midcurve",
		Short:        "Concentrated-liquidity position ledger engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync a position's ledger from the chain",
		RunE:  runSync,
	}

	syncCmd.Flags().String("rpc", "", "EVM RPC URL (archive node for historic prices)")
	syncCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	syncCmd.Flags().String("position-manager", "0xC36442b4a4522E871399CD717aBDD847Ab11FE88", "NonfungiblePositionManager address")
	syncCmd.Flags().String("position", "", "position id to sync")
	syncCmd.Flags().Bool("full-resync", false, "rebuild the ledger from the deployment block")
	syncCmd.Flags().String("sync-by", "cli", "initiator recorded in the sync state")
	syncCmd.Flags().Uint64("batch-size", 10000, "blocks per log query")
	syncCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	syncCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	syncCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(syncCmd)

	aprCmd := &cobra.Command{
		Use:   "apr",
		Short: "Show a position's APR periods",
		RunE:  runApr,
	}

	aprCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aprCmd.Flags().String("position", "", "position id")
	aprCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aprCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a position's ledger events to JSONL",
		RunE:  runExport,
	}

	exportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	exportCmd.Flags().String("position", "", "position id")
	exportCmd.Flags().String("out", "./data/ledger_events.jsonl", "output JSONL path")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(exportCmd)

	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Manage tracked positions",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a position for tracking",
		RunE:  runPositionAdd,
	}

	addCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	addCmd.Flags().String("rpc", "", "EVM RPC URL, verifies the pool when set")
	addCmd.Flags().String("id", "", "position id")
	addCmd.Flags().Uint64("chain-id", 0, "chain id")
	addCmd.Flags().String("pool", "", "pool contract address")
	addCmd.Flags().String("token-id", "", "NonfungiblePositionManager token id")
	addCmd.Flags().String("owner", "", "owner address (optional)")
	addCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	positionCmd.AddCommand(addCmd)
	root.AddCommand(positionCmd)

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

// redactDSN strips credentials from a DSN before it is logged.
func redactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.User == nil {
		return dsn
	}
	parsed.User = url.User(parsed.User.Username())
	return parsed.String()
}
