package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/microlens-cli/internal/table"
)

// Global configuration structure.
type Global struct {
	StudiesDir string `mapstructure:"studies_dir" yaml:"studies_dir"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Input schema
	SchemaLabel   string   `mapstructure:"schema_label" yaml:"schema_label"`
	SchemaColumns []string `mapstructure:"schema_columns" yaml:"schema_columns"`

	DefaultFidelity string `mapstructure:"default_fidelity" yaml:"default_fidelity"`
	BatchJobs       int    `mapstructure:"batch_jobs" yaml:"batch_jobs"`

	// HTTP adapter
	ServerPort      int      `mapstructure:"server_port" yaml:"server_port"`
	ServerRateLimit float64  `mapstructure:"server_rate_limit" yaml:"server_rate_limit"`
	ServerRateBurst int      `mapstructure:"server_rate_burst" yaml:"server_rate_burst"`
	CacheSize       int      `mapstructure:"cache_size" yaml:"cache_size"`
	MaxUploadMB     int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Schema returns the configured input schema, falling back to the registry default.
func (c *Global) Schema() table.Schema {
	s := table.DefaultSchema()
	if c == nil {
		return s
	}
	if c.SchemaLabel != "" {
		s.Label = c.SchemaLabel
	}
	if len(c.SchemaColumns) > 0 {
		s.Columns = append([]string(nil), c.SchemaColumns...)
	}
	return s
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".microlens"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.microlens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > .env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// optional .env in the working directory; real env vars win
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MICROLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	schema := table.DefaultSchema()
	v.SetDefault("studies_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("schema_label", schema.Label)
	v.SetDefault("schema_columns", schema.Columns)
	v.SetDefault("default_fidelity", "full")
	v.SetDefault("batch_jobs", 4)
	v.SetDefault("server_port", 5000)
	v.SetDefault("server_rate_limit", 5.0)
	v.SetDefault("server_rate_burst", 10)
	v.SetDefault("cache_size", 64)
	v.SetDefault("max_upload_mb", 16)
	v.SetDefault("allowed_origins", []string{"*"})

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.StudiesDir == "" {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		c.StudiesDir = filepath.Join(dir, "studies")
	}
	return &c, nil
}
