package util

import (
	"context"

	"github.com/bacalhau-project/simverify/pkg/config/types"
	"github.com/bacalhau-project/simverify/pkg/system"
)

type contextKey string

const (
	systemManagerKey contextKey = "system_manager"
	configKey        contextKey = "config"
)

func WithCleanupManager(ctx context.Context, cm *system.CleanupManager) context.Context {
	return context.WithValue(ctx, systemManagerKey, cm)
}

// GetCleanupManager returns the cleanup manager of the running command. A
// fresh one is returned outside of a command.
func GetCleanupManager(ctx context.Context) *system.CleanupManager {
	if cm, ok := ctx.Value(systemManagerKey).(*system.CleanupManager); ok {
		return cm
	}
	return system.NewCleanupManager()
}

func WithConfig(ctx context.Context, cfg types.SimverifyConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// GetConfig returns the configuration loaded by the root command.
func GetConfig(ctx context.Context) (types.SimverifyConfig, bool) {
	cfg, ok := ctx.Value(configKey).(types.SimverifyConfig)
	return cfg, ok
}
