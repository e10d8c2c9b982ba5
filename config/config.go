package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Source names that are always available in addition to configured vendors
const (
	SourceBuiltin   = "builtin"
	SourceKnowledge = "knowledge"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Selection SelectionConfig `mapstructure:"selection"`
	Vendors   []VendorConfig  `mapstructure:"vendors"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SelectionConfig tunes the selection pipeline
type SelectionConfig struct {
	DefaultTopK    int           `mapstructure:"default_top_k"`
	MaxTopK        int           `mapstructure:"max_top_k"`
	Sources        []string      `mapstructure:"sources"` // priority order
	SourceTimeout  time.Duration `mapstructure:"source_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// VendorConfig describes one distributor API
type VendorConfig struct {
	Name              string        `mapstructure:"name"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Debug             bool          `mapstructure:"debug"`
}

// KnowledgeConfig locates the datasheet index
type KnowledgeConfig struct {
	Path  string `mapstructure:"path"` // empty disables the knowledge source
	Watch bool   `mapstructure:"watch"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory"
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit file, or from the default
// search paths when path is empty
func LoadFile(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Set config name and paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/partselect/")
	}

	// Environment variable settings
	v.SetEnvPrefix("PARTSELECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	applyVendorKeys(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile reads ./.env when present. Variables already set win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return gotenv.Load(".env")
}

// applyVendorKeys fills missing vendor API keys from
// PARTSELECT_VENDOR_<NAME>_API_KEY so secrets can stay out of config files
func applyVendorKeys(config *Config) {
	for i := range config.Vendors {
		vendor := &config.Vendors[i]
		if vendor.APIKey != "" {
			continue
		}
		name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(vendor.Name), "-", "_"))
		vendor.APIKey = os.Getenv("PARTSELECT_VENDOR_" + name + "_API_KEY")
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Selection defaults
	v.SetDefault("selection.default_top_k", 5)
	v.SetDefault("selection.max_top_k", 20)
	v.SetDefault("selection.sources", []string{SourceBuiltin})
	v.SetDefault("selection.source_timeout", "10s")
	v.SetDefault("selection.max_concurrency", 8)

	// Knowledge defaults
	v.SetDefault("knowledge.path", "")
	v.SetDefault("knowledge.watch", false)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validate validates the configuration
func validate(config *Config) error {
	sel := config.Selection
	if sel.MaxTopK < 1 || sel.MaxTopK > 20 {
		return fmt.Errorf("selection.max_top_k must be between 1 and 20, got: %d", sel.MaxTopK)
	}
	if sel.DefaultTopK < 1 || sel.DefaultTopK > sel.MaxTopK {
		return fmt.Errorf("selection.default_top_k must be between 1 and %d, got: %d", sel.MaxTopK, sel.DefaultTopK)
	}
	if sel.SourceTimeout <= 0 {
		return fmt.Errorf("selection.source_timeout must be positive")
	}
	if len(sel.Sources) == 0 {
		return fmt.Errorf("selection.sources must list at least one source")
	}

	known := map[string]bool{SourceBuiltin: true}
	if config.Knowledge.Path != "" {
		known[SourceKnowledge] = true
	}
	for _, vendor := range config.Vendors {
		name := strings.ToLower(strings.TrimSpace(vendor.Name))
		if name == "" {
			return fmt.Errorf("vendor name is required")
		}
		if known[name] || name == SourceKnowledge {
			return fmt.Errorf("vendor name %q is already in use", name)
		}
		if vendor.BaseURL == "" {
			return fmt.Errorf("vendor %s: base_url is required", name)
		}
		known[name] = true
	}
	for _, source := range sel.Sources {
		if !known[strings.ToLower(strings.TrimSpace(source))] {
			return fmt.Errorf("selection.sources references unknown source: %s", source)
		}
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	switch strings.ToLower(config.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got: %s", config.Log.Level)
	}
	switch strings.ToLower(config.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}
