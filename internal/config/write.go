package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# fleetd configuration.
# Every value here can be overridden with FLEETD_* environment variables,
# e.g. FLEETD_REGISTRY_STALENESS_THRESHOLD=1m.
`

// Default returns the configuration written by "fleetd init". It matches
// the loader defaults so a generated file changes nothing until edited.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Store: StoreConfig{
			Path: ".fleetd/fleet.db",
		},
		Registry: RegistryConfig{
			HeartbeatInterval:  5 * time.Second,
			StalenessThreshold: 30 * time.Second,
			AggregateFields:    DefaultAggregateFields(),
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9620,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableCORS:      false,
			CORSOrigins:     []string{},
		},
	}
}

// WriteFile marshals cfg to YAML and writes it atomically. Refuses to
// overwrite an existing file unless force is set.
func WriteFile(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(yamlView(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := atomicWriteFile(path, append([]byte(fileHeader), data...), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// yamlView renders durations as strings ("5s" instead of 5000000000) so
// the generated file stays readable and round-trips through the loader.
func yamlView(cfg *Config) map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
		"store": map[string]any{
			"path": cfg.Store.Path,
		},
		"registry": map[string]any{
			"heartbeat_interval":  cfg.Registry.HeartbeatInterval.String(),
			"staleness_threshold": cfg.Registry.StalenessThreshold.String(),
			"aggregate_fields":    cfg.Registry.AggregateFields,
		},
		"server": map[string]any{
			"host":             cfg.Server.Host,
			"port":             cfg.Server.Port,
			"read_timeout":     cfg.Server.ReadTimeout.String(),
			"write_timeout":    cfg.Server.WriteTimeout.String(),
			"idle_timeout":     cfg.Server.IdleTimeout.String(),
			"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
			"enable_cors":      cfg.Server.EnableCORS,
			"cors_origins":     cfg.Server.CORSOrigins,
		},
	}
}
