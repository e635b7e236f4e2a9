package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"newsrelay/internal/app"
	"newsrelay/internal/config"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "newsrelay",
	Short: "Relay technology news from newsapi.org to a Telegram channel",
	Long: `newsrelay fetches a small batch of technology articles, optionally rewrites
them with a generative model and publishes each one to a Telegram channel.

Examples:
  newsrelay run                      # Publish one batch and exit
  newsrelay serve                    # Serve /api/send-news and the schedule
  newsrelay serve --config cfg.json  # Use a JSON config file`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger endpoint and the optional batch schedule",
	RunE:  runServe,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single batch and exit",
	RunE:  runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to JSON config file (defaults and environment if empty)")
	rootCmd.AddCommand(serveCmd, runCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	return a.Serve(cmd.Context())
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	result, err := a.RunOnce(cmd.Context())
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Message sent: run %s, %d of %d articles published\n",
		result.RunID, result.Published(), result.Fetched)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		stop()
		os.Exit(1)
	}
}
