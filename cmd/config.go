package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/microlens-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set MicroLens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "studies_dir: %s\n", cfg.StudiesDir)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		fmt.Fprintf(out, "schema_label: %s\n", cfg.SchemaLabel)
		fmt.Fprintf(out, "schema_columns: %s\n", strings.Join(cfg.SchemaColumns, ","))
		fmt.Fprintf(out, "default_fidelity: %s\n", cfg.DefaultFidelity)
		fmt.Fprintf(out, "batch_jobs: %d\n", cfg.BatchJobs)
		fmt.Fprintf(out, "server_port: %d\n", cfg.ServerPort)
		fmt.Fprintf(out, "server_rate_limit: %.2f\n", cfg.ServerRateLimit)
		fmt.Fprintf(out, "server_rate_burst: %d\n", cfg.ServerRateBurst)
		fmt.Fprintf(out, "cache_size: %d\n", cfg.CacheSize)
		fmt.Fprintf(out, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Fprintf(out, "allowed_origins: %s\n", strings.Join(cfg.AllowedOrigins, ","))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "studies_dir":
		c.StudiesDir = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "warning", "error", "disabled", "off":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error|off)", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	case "schema_label":
		c.SchemaLabel = val
	case "schema_columns":
		var cols []string
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cols = append(cols, p)
			}
		}
		if len(cols) == 0 {
			return fmt.Errorf("schema_columns needs at least one column")
		}
		c.SchemaColumns = cols
	case "default_fidelity":
		f, err := analysis.ParseFidelity(val)
		if err != nil {
			return err
		}
		c.DefaultFidelity = string(f)
	case "batch_jobs", "server_port", "server_rate_burst", "cache_size", "max_upload_mb":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "batch_jobs":
			c.BatchJobs = i
		case "server_port":
			c.ServerPort = i
		case "server_rate_burst":
			c.ServerRateBurst = i
		case "cache_size":
			c.CacheSize = i
		case "max_upload_mb":
			c.MaxUploadMB = i
		}
	case "server_rate_limit":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for server_rate_limit: %v", val)
		}
		c.ServerRateLimit = f
	case "allowed_origins":
		c.AllowedOrigins = strings.Split(val, ",")
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
