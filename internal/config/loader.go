package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "FLEETD",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "FLEETD",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (FLEETD_*)
// 3. Config file (.fleetd/config.yaml in current directory)
// 4. User config (~/.config/fleetd/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".fleetd")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "fleetd"))
		}
	}

	// Missing config file is fine; defaults and env cover everything.
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("store.path", ".fleetd/fleet.db")

	l.v.SetDefault("registry.heartbeat_interval", "5s")
	l.v.SetDefault("registry.staleness_threshold", "30s")
	l.v.SetDefault("registry.aggregate_fields", DefaultAggregateFields())

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 9620)
	l.v.SetDefault("server.read_timeout", "15s")
	l.v.SetDefault("server.write_timeout", "30s")
	l.v.SetDefault("server.idle_timeout", "60s")
	l.v.SetDefault("server.shutdown_timeout", "10s")
	l.v.SetDefault("server.enable_cors", false)
	l.v.SetDefault("server.cors_origins", []string{})
}

// DefaultAggregateFields returns the metric keys summed fleet-wide when
// no explicit set is configured. processing_count and pipelines_busy are
// derived from snapshot columns by the registry before aggregation.
func DefaultAggregateFields() []string {
	return []string{
		"processing_count",
		"pipelines_busy",
		"cpu_percent",
		"goroutines",
	}
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
