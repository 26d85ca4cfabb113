package app

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/account"
	"github.com/secureauth-ai/sentinel/internal/config"
	"github.com/secureauth-ai/sentinel/internal/database"
	"github.com/secureauth-ai/sentinel/internal/gate"
	"github.com/secureauth-ai/sentinel/internal/migration"
	"github.com/secureauth-ai/sentinel/internal/risk"
	"github.com/secureauth-ai/sentinel/internal/server"
	"github.com/secureauth-ai/sentinel/internal/store"
	"github.com/secureauth-ai/sentinel/internal/store/memory"
	"github.com/secureauth-ai/sentinel/internal/store/postgres"
	"github.com/secureauth-ai/sentinel/internal/tenant"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Logger
		fx.Provide(newLogger),

		// Configuration
		fx.Provide(server.LoadConfig),

		// Persistence
		database.Module(),
		migration.Module(),
		fx.Provide(newStore),

		// Engine modules
		tenant.NewModule(),
		account.NewModule(),
		risk.NewModule(),
		gate.NewModule(),

		// Server
		fx.Provide(server.NewServer),

		// Start the server
		fx.Invoke(registerHooks),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

// newStore selects the persistence driver from configuration.
func newStore(cfg *config.AppConfig, manager *database.Manager, log *zap.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := manager.Open()
		if err != nil {
			return nil, err
		}
		log.Info("using postgres store")
		return postgres.New(db, log), nil
	default:
		log.Info("using in-memory store")
		return memory.New(), nil
	}
}

func registerHooks(
	lifecycle fx.Lifecycle,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			srv.Stop()
			return nil
		},
	})
}
