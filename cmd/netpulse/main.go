package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/netpulse/internal/config"
	"github.com/hazz-dev/netpulse/internal/logging"
	"github.com/hazz-dev/netpulse/internal/storage"
	"github.com/hazz-dev/netpulse/internal/version"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "netpulse",
		Short:             "Developer-friendly network diagnostics",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "netpulse.yml", "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(versionCmd())
	root.AddCommand(pingCmd())
	root.AddCommand(httpCmd())
	root.AddCommand(dnsCmd())
	root.AddCommand(sslCmd())
	root.AddCommand(monitorCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())

	return root
}

// setup loads .env from the working directory when present and installs a
// stderr logger at --log-level.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	lc := config.DefaultLog()
	lc.Level = logLevel
	logger, _, err := logging.New(lc, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run every configured probe once",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return runChecks(cmd.Context(), cmd.OutOrStdout(), cfg)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the latest stored result of each probe",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return executeStatus(cmd, db)
}
