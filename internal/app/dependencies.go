package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/postgres"
)

// runtimeDependencies хранит репозитории выбранного драйвера и функцию их закрытия.
type runtimeDependencies struct {
	orders         domain.OrderRepository
	users          domain.UserRepository
	outbox         domain.OutboxRepository
	storageChecker health.Checker
	closeFn        func() error
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		return initMemoryDependencies(cfg, logger), nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initMemoryDependencies не подключает outbox к репозиторию заказов:
// relay читает только PostgreSQL, и события в памяти API-процесса никто не разбирает.
func initMemoryDependencies(cfg Config, logger *log.Entry) *runtimeDependencies {
	if cfg.OutboxEnabled {
		logger.Info("transactional outbox requires postgres storage; order events are not recorded")
	}

	logger.Warn("using in-memory storage: data is lost on restart")
	return &runtimeDependencies{
		orders: memory.NewOrderRepository(),
		users:  memory.NewUserRepository(),
		outbox: memory.NewOutboxRepository(),
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *log.Entry) (*postgres.Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres storage requires a DSN")
	}

	pool := postgres.DefaultPoolConfig()
	if cfg.PostgresMaxConns > 0 {
		pool.MaxOpenConns = cfg.PostgresMaxConns
		if pool.MaxIdleConns > pool.MaxOpenConns {
			pool.MaxIdleConns = pool.MaxOpenConns
		}
	}

	store, err := postgres.OpenWithPool(ctx, cfg.PostgresDSN, pool)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		state, err := store.MigrationStatus(ctx)
		if err == nil {
			logger.WithFields(log.Fields{
				"schema_version": state.Version,
				"applied":        state.Applied,
			}).Info("postgres schema is up to date")
		}
	}

	return store, nil
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	store, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &runtimeDependencies{
		orders:         postgres.NewOrderRepository(store, postgres.WithOutbox(cfg.OutboxEnabled)),
		users:          postgres.NewUserRepository(store),
		outbox:         postgres.NewOutboxRepository(store),
		storageChecker: health.NewPingChecker("postgres", store),
		closeFn:        store.Close,
	}, nil
}
