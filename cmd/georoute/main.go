// Package main is the entry point for the georoute binary: the routing
// service and its offline list tools.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/georoute/internal/app"
	"github.com/MrSnakeDoc/georoute/internal/config"
	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command; without a subcommand it serves
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "georoute",
		Short: "Category-based proxy routing from a domain list",
		Long: `georoute keeps a categorized domain list up to date from a set of mirrors
and compiles it, with operator-added sites and the proxy settings, into a PAC
script and a proxy authentication responder.

Configuration is read from GEOROUTE_* environment variables.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the routing service",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newDecodeCmd(),
		newPACCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)
	return rootCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = loggerClient.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, loggerClient)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
