package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"imageservice/internal/bootstrap"
	"imageservice/internal/infra"
	"imageservice/internal/metrics"
)

const dequeueWait = 5 * time.Second

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	m := metrics.NewCollector()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := bootstrap.NewGenerator(cfg, &logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build generator")
	}
	tasks, closeTasks, err := bootstrap.NewTaskService(ctx, cfg, gen, &logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: task backends unavailable")
	}
	defer closeTasks()

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return tasks.Work(gctx, dequeueWait)
		})
	}

	if addr := cfg.WorkerMetricsAddr; addr != "" {
		srv := infra.NewMetricsServer(addr, m.Handler())
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	logger.Info().Int("concurrency", concurrency).Str("queue", cfg.TaskQueueKey).Msg("worker: started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
