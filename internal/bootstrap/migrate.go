package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/config"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/migrations"
)

// AutoMigrate applies pending migrations on start when AUTO_MIGRATE is set.
func AutoMigrate(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	if !cfg.AutoMigrate {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := migrations.Up(cfg.DatabaseURL, logger); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			return nil
		},
	})
}
