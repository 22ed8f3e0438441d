package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// StoreConfig configures the shared instance store.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RegistryConfig configures instance identity and the liveness protocol.
type RegistryConfig struct {
	// InstanceID overrides the generated identity. Leave empty in normal
	// deployments; every process restart gets a fresh ID.
	InstanceID         string        `mapstructure:"instance_id" yaml:"instance_id"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold" yaml:"staleness_threshold"`
	// AggregateFields is the metric keys summed into total_* values.
	AggregateFields []string `mapstructure:"aggregate_fields" yaml:"aggregate_fields"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	EnableCORS      bool          `mapstructure:"enable_cors" yaml:"enable_cors"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}
