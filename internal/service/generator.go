package service

import (
	"context"
	"fmt"
	"time"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
	"imageservice/internal/materialize"
	"imageservice/internal/metrics"
	"imageservice/internal/polling"
	"imageservice/internal/providers"
	"imageservice/internal/storage"
)

// GeneratorOptions wires a Generator.
type GeneratorOptions struct {
	Registry     *providers.Registry
	Poller       *polling.Poller
	Materializer *materialize.Materializer
	Store        *storage.FileStore
	Logger       *infra.Logger
	Metrics      *metrics.Collector
}

// Generator runs generation jobs end to end: normalize, submit, poll and
// materialize. It holds no per-job state, so any number of jobs may run
// concurrently.
type Generator struct {
	registry     *providers.Registry
	poller       *polling.Poller
	materializer *materialize.Materializer
	store        *storage.FileStore
	logger       *infra.Logger
	metrics      *metrics.Collector
	now          func() time.Time
}

// NewGenerator validates opts and returns a Generator.
func NewGenerator(opts GeneratorOptions) (*Generator, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("service: registry is required")
	}
	if opts.Materializer == nil || opts.Store == nil {
		return nil, fmt.Errorf("service: artifact store is required")
	}
	poller := opts.Poller
	if poller == nil {
		poller = polling.New(polling.DefaultPolicy(), opts.Logger)
	}
	return &Generator{
		registry:     opts.Registry,
		poller:       poller,
		materializer: opts.Materializer,
		store:        opts.Store,
		logger:       infra.OrNop(opts.Logger),
		metrics:      opts.Metrics,
		now:          time.Now,
	}, nil
}

// Providers lists the registered provider descriptors.
func (g *Generator) Providers() []providers.Descriptor {
	return g.registry.Descriptors()
}

// Prepare resolves the provider and normalizes params without any network I/O.
func (g *Generator) Prepare(providerName, model string, params map[string]any) (providers.Provider, *providers.NormalizedRequest, error) {
	p, err := g.registry.Resolve(providerName)
	if err != nil {
		return nil, nil, err
	}
	req, err := p.Normalize(model, params)
	if err != nil {
		return nil, nil, err
	}
	return p, req, nil
}

// Generate runs one job to completion and returns its result. Validation
// errors are returned before any request leaves the process.
func (g *Generator) Generate(ctx context.Context, providerName, model string, params map[string]any) (*domain.GenerationResult, error) {
	started := g.now()
	log := g.logger.With().Str("provider", providerName).Str("model", model).Logger()

	p, req, err := g.Prepare(providerName, model, params)
	if err != nil {
		log.Warn().Err(err).Msg("request rejected")
		g.metrics.ObserveJob(providerName, model, domain.ErrorCode(err), g.now().Sub(started), 0)
		return nil, err
	}
	if len(req.Ignored) > 0 {
		log.Warn().Strs("keys", req.Ignored).Msg("parameters not forwarded to vendor")
	}

	job, err := p.Submit(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("vendor_message", domain.VendorMessage(err)).Msg("job submission failed")
		g.metrics.ObserveJob(providerName, model, domain.ErrorCode(err), g.now().Sub(started), 0)
		return nil, err
	}
	log = log.With().Str("job_id", job.ID).Logger()
	log.Info().Msg("job submitted")

	report, attempts, err := g.poller.Run(ctx, job, p.Status)
	if err != nil {
		log.Error().
			Err(err).
			Int("attempts", attempts).
			Str("status", string(job.Status)).
			Str("vendor_message", domain.VendorMessage(err)).
			Msg("job failed")
		g.metrics.ObserveJob(providerName, model, domain.ErrorCode(err), g.now().Sub(started), attempts)
		return nil, err
	}

	artifacts := g.materializer.Materialize(ctx, providerName, job.ID, report.Images)
	result := assemble(job, req, report, artifacts, g.now())
	if missing := result.MissingImages(); len(missing) > 0 {
		log.Warn().Ints("indexes", missing).Msg("some images could not be downloaded")
	}
	if result.Accounting != nil {
		g.metrics.AddPointsCost(providerName, result.Accounting.PointsCost)
	}
	g.metrics.ObserveJob(providerName, model, "succeeded", g.now().Sub(started), attempts)
	log.Info().Int("images", len(result.Images)).Int("attempts", attempts).Msg("job succeeded")
	return result, nil
}

// LocateArtifact resolves a bare artifact file name to its local path.
func (g *Generator) LocateArtifact(name string) (string, error) {
	return g.store.Locate(name, g.registry.Names())
}

func assemble(job *domain.RemoteJob, req *providers.NormalizedRequest, report *domain.StatusReport, images []domain.ImageArtifact, now time.Time) *domain.GenerationResult {
	if images == nil {
		images = []domain.ImageArtifact{}
	}
	return &domain.GenerationResult{
		ID:             job.ID,
		Provider:       job.Provider,
		Model:          req.Model,
		CreatedAt:      now.UTC(),
		Prompt:         req.Summary.Prompt,
		NegativePrompt: req.Summary.NegativePrompt,
		Width:          req.Summary.Width,
		Height:         req.Summary.Height,
		Size:           req.Summary.Size,
		Images:         images,
		Accounting:     report.Accounting,
	}
}
