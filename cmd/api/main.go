package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"imageservice/internal/bootstrap"
	"imageservice/internal/http/handlers"
	httpapi "imageservice/internal/http/httpapi"
	"imageservice/internal/infra"
	"imageservice/internal/metrics"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	m := metrics.NewCollector()

	ctx := context.Background()
	gen, err := bootstrap.NewGenerator(cfg, &logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generator")
	}

	app := &handlers.App{
		Config:    cfg,
		Logger:    &logger,
		Generator: gen,
		Metrics:   m,
	}

	// Without a task store the synchronous API still works; task routes reply 503.
	tasks, closeTasks, err := bootstrap.NewTaskService(ctx, cfg, gen, &logger, m)
	if err != nil {
		logger.Warn().Err(err).Msg("task backends unavailable, queued generation disabled")
	} else {
		defer closeTasks()
		app.Tasks = tasks
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))
	logger.Info().Str("addr", server.Addr()).Strs("providers", providerNames(app)).Msg("API listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("server stopped")
}

func providerNames(app *handlers.App) []string {
	descs := app.Generator.Providers()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}
