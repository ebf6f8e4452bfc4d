// Command corkboard runs the board API and its operator tooling.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"corkboard/internal/platform/config"
	"corkboard/internal/platform/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "corkboard",
	Short: "Membership board API",
	Long: `corkboard serves the membership board API behind its security layer
(rate limiting, CSRF protection, audit logging and security headers) and
offers operator commands for the audit log.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./corkboard.yaml or /etc/corkboard/corkboard.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config and builds the process logger from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(os.Stderr, level, cfg.Logging.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}
