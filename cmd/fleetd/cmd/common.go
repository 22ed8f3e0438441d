package cmd

import (
	"os"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/fleetd/internal/config"
	"github.com/hugo-lorenzo-mato/fleetd/internal/logging"
	"github.com/hugo-lorenzo-mato/fleetd/internal/registry"
	"github.com/hugo-lorenzo-mato/fleetd/internal/store"
)

// loadConfig loads the full configuration through the shared viper
// instance so CLI flag bindings participate.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	return loader.Load()
}

// newLogger builds the process logger from the global flags.
func newLogger() *logging.Logger {
	return logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stdout,
	})
}

// openRegistry opens the shared store and builds a registry from config.
// The caller owns closing the returned store.
func openRegistry(cfg *config.Config, logger *logging.Logger) (*store.Store, *registry.Registry, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New(st,
		registry.WithInstanceID(cfg.Registry.InstanceID),
		registry.WithHeartbeatInterval(cfg.Registry.HeartbeatInterval),
		registry.WithStalenessThreshold(cfg.Registry.StalenessThreshold),
		registry.WithAggregateFields(cfg.Registry.AggregateFields),
		registry.WithLogger(logger),
	)
	return st, reg, nil
}
