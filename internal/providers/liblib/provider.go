package liblib

import (
	"context"
	"strconv"
	"strings"
	"time"

	"imageservice/internal/domain"
	"imageservice/internal/providers"
)

const (
	generateStatusSucceeded = 5
	generateStatusFailed    = 6
	generateStatusExpired   = 7
)

// Provider adapts the LiblibAI client to the providers.Provider contract.
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

// Normalize applies the variant schema for model. It performs no I/O.
func (p *Provider) Normalize(model string, params map[string]any) (*providers.NormalizedRequest, error) {
	return normalize(p.desc, model, params)
}

// Submit posts the signed generation request.
func (p *Provider) Submit(ctx context.Context, req *providers.NormalizedRequest) (*domain.RemoteJob, error) {
	id, err := p.client.CreateTask(ctx, req.Endpoint, req.Body)
	if err != nil {
		return nil, err
	}
	return &domain.RemoteJob{
		Provider:    p.desc.Name,
		Model:       req.Model,
		ID:          id,
		SubmittedAt: time.Now().UTC(),
		Status:      domain.JobStatusPending,
	}, nil
}

// Status issues one freshly signed status query.
func (p *Provider) Status(ctx context.Context, job *domain.RemoteJob) (*domain.StatusReport, error) {
	data, err := p.client.queryStatus(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	report := &domain.StatusReport{
		Status:    mapStatus(data.GenerateStatus),
		RawStatus: strconv.Itoa(data.GenerateStatus),
	}
	switch report.Status {
	case domain.JobStatusSucceeded:
		report.Images = make([]domain.RemoteImage, 0, len(data.Images))
		for i, img := range data.Images {
			report.Images = append(report.Images, domain.RemoteImage{
				Index:       i,
				URL:         strings.TrimSpace(img.ImageURL),
				Seed:        img.Seed,
				AuditStatus: img.AuditStatus,
			})
		}
		report.Accounting = &domain.Accounting{
			PointsCost:     data.PointsCost,
			AccountBalance: data.AccountBalance,
		}
	case domain.JobStatusFailed:
		report.Message = orDefault(data.GenerateMsg, "Task failed or timed out")
	}
	return report, nil
}

func mapStatus(code int) domain.JobStatus {
	switch code {
	case generateStatusSucceeded:
		return domain.JobStatusSucceeded
	case generateStatusFailed, generateStatusExpired:
		return domain.JobStatusFailed
	default:
		return domain.JobStatusRunning
	}
}
