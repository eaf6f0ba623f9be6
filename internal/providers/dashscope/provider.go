package dashscope

import (
	"context"
	"strings"
	"time"

	"imageservice/internal/domain"
	"imageservice/internal/providers"
)

// Provider adapts the DashScope client to the providers.Provider contract.
type Provider struct {
	desc   providers.Descriptor
	client *Client
}

// New returns a provider factory bound to client.
func New(client *Client) providers.Factory {
	return func(desc providers.Descriptor) providers.Provider {
		return &Provider{desc: desc, client: client}
	}
}

func (p *Provider) Descriptor() providers.Descriptor { return p.desc }

// Normalize validates params against the wanx schema. It performs no I/O.
func (p *Provider) Normalize(model string, params map[string]any) (*providers.NormalizedRequest, error) {
	return normalize(p.desc, model, params)
}

// Submit creates an async task and returns it in the PENDING state.
func (p *Provider) Submit(ctx context.Context, req *providers.NormalizedRequest) (*domain.RemoteJob, error) {
	taskID, err := p.client.CreateTask(ctx, req.Endpoint, req.Body)
	if err != nil {
		return nil, err
	}
	return &domain.RemoteJob{
		Provider:    p.desc.Name,
		Model:       req.Model,
		ID:          taskID,
		SubmittedAt: time.Now().UTC(),
		Status:      domain.JobStatusPending,
	}, nil
}

// Status queries the task once and maps the vendor vocabulary onto the
// canonical job states.
func (p *Provider) Status(ctx context.Context, job *domain.RemoteJob) (*domain.StatusReport, error) {
	env, err := p.client.getTask(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	raw := env.TaskStatus
	if raw == "" && env.Output != nil {
		raw = env.Output.TaskStatus
	}
	report := &domain.StatusReport{Status: mapStatus(raw), RawStatus: raw}
	switch report.Status {
	case domain.JobStatusSucceeded:
		report.Images = collectImages(env)
	case domain.JobStatusFailed:
		report.Message = failureMessage(env)
	}
	return report, nil
}

func mapStatus(raw string) domain.JobStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCEEDED", "COMPLETE", "SUCCESS":
		return domain.JobStatusSucceeded
	case "FAILED", "CANCELLED", "ERROR":
		return domain.JobStatusFailed
	default:
		return domain.JobStatusRunning
	}
}

func failureMessage(env *taskEnvelope) string {
	if env.Output != nil && env.Output.Message != "" {
		return env.Output.Message
	}
	if env.Message != "" {
		return env.Message
	}
	return "Unknown error"
}

// collectImages reads output.results, falling back to result.results for the
// alternate envelope some task types reply with.
func collectImages(env *taskEnvelope) []domain.RemoteImage {
	var results []taskResult
	if env.Output != nil && len(env.Output.Results) > 0 {
		results = env.Output.Results
	} else if env.Result != nil {
		results = env.Result.Results
	}
	images := make([]domain.RemoteImage, 0, len(results))
	for i, r := range results {
		images = append(images, domain.RemoteImage{
			Index: i,
			URL:   strings.TrimSpace(r.URL),
			Seed:  r.Seed,
		})
	}
	return images
}
