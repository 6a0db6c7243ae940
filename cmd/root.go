package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/microlens-cli/internal/config"
	"github.com/KaramelBytes/microlens-cli/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logFormat string

	// Loaded configuration
	cfg *cfgpkg.Global
	log *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "microlens",
	Short: "MicroLens CLI: microplastic dietary exposure risk analysis",
	Long: `MicroLens analyzes per-country (or per-sample) dietary intake tables, classifies
exposure risk, groups populations with k-means, projects them with PCA and mines
co-consumption patterns. Reports can be printed, saved into studies or served over HTTP.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.microlens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console|json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	} else {
		cfg = c
	}

	level, format := "warn", "console"
	if cfg != nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	if debug {
		level = "debug"
	}
	if rootCmd.PersistentFlags().Changed("log-format") && logFormat != "" {
		format = logFormat
	}
	log = logging.New(level, format, os.Stderr)
}

// logger returns the configured logger, or a warn-level console logger when
// configuration was never loaded.
func logger() *logging.Logger {
	if log == nil {
		return logging.New("warn", "console", os.Stderr)
	}
	return log
}
