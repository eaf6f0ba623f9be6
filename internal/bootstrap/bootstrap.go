// Package bootstrap wires the components shared by the api, worker and
// imagectl binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"imageservice/internal/adapter/repo"
	"imageservice/internal/domain"
	"imageservice/internal/infra"
	"imageservice/internal/materialize"
	"imageservice/internal/metrics"
	"imageservice/internal/polling"
	"imageservice/internal/queue"
	"imageservice/internal/service"
	"imageservice/internal/storage"
)

// NewGenerator builds the provider registry, artifact store and the
// generation pipeline on top of them.
func NewGenerator(cfg *infra.Config, logger *infra.Logger, m *metrics.Collector) (*service.Generator, error) {
	dataDir := cfg.DataDir
	if !filepath.IsAbs(dataDir) {
		if abs, err := filepath.Abs(dataDir); err == nil {
			dataDir = abs
		}
	}
	store, err := storage.NewFileStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("configure artifact store: %w", err)
	}

	reg, err := service.BuildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	mat, err := materialize.New(materialize.Options{
		Store:       store,
		Timeout:     cfg.DownloadTimeout,
		Concurrency: cfg.DownloadConcurrency,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		return nil, err
	}

	return service.NewGenerator(service.GeneratorOptions{
		Registry:     reg,
		Poller:       polling.New(polling.Policy{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts}, logger),
		Materializer: mat,
		Store:        store,
		Logger:       logger,
		Metrics:      m,
	})
}

// OpenTaskRepository connects to the configured task store and makes sure its
// schema exists. The returned func releases the connection.
func OpenTaskRepository(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (domain.TaskRepository, func(), error) {
	switch cfg.JobStore {
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		r := repo.NewTaskRepository(infra.NewSQLRunner(pool, logger))
		if err := r.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return r, pool.Close, nil
	case "mongo":
		client, err := infra.NewMongoClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		r := repo.NewTaskRepositoryMongo(client.Database(cfg.MongoDatabase))
		if err := r.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("ensure task indexes: %w", err)
		}
		return r, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown JOB_STORE %q", cfg.JobStore)
	}
}

// OpenQueue connects to Redis and binds the task queue.
func OpenQueue(ctx context.Context, cfg *infra.Config) (*queue.RedisQueue, func(), error) {
	client, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	q, err := queue.NewRedisQueue(client, cfg.TaskQueueKey)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return q, func() { _ = client.Close() }, nil
}

// NewTaskService opens the task store and queue and wires them to gen.
func NewTaskService(ctx context.Context, cfg *infra.Config, gen *service.Generator, logger *infra.Logger, m *metrics.Collector) (*service.TaskService, func(), error) {
	taskRepo, closeRepo, err := OpenTaskRepository(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open task store: %w", err)
	}
	q, closeQueue, err := OpenQueue(ctx, cfg)
	if err != nil {
		closeRepo()
		return nil, nil, fmt.Errorf("open task queue: %w", err)
	}
	svc, err := service.NewTaskService(service.TaskServiceOptions{
		Generator: gen,
		Repo:      taskRepo,
		Queue:     q,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		closeQueue()
		closeRepo()
		return nil, nil, err
	}
	return svc, func() {
		closeQueue()
		closeRepo()
	}, nil
}
