package polling

import (
	"context"
	"fmt"
	"time"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
)

const (
	DefaultInterval    = 15 * time.Second
	DefaultMaxAttempts = 120
)

// Policy bounds a polling loop: one query per Interval, at most MaxAttempts
// queries.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy returns the 15s x 120 budget.
func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts}
}

func (p Policy) normalized() Policy {
	if p.Interval < 0 {
		p.Interval = 0
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// CheckFunc issues exactly one status query for job.
type CheckFunc func(ctx context.Context, job *domain.RemoteJob) (*domain.StatusReport, error)

// Poller drives a submitted job to a terminal state.
type Poller struct {
	policy Policy
	logger *infra.Logger
}

// New creates a poller. A nil logger discards transition logs.
func New(policy Policy, logger *infra.Logger) *Poller {
	return &Poller{policy: policy.normalized(), logger: infra.OrNop(logger)}
}

// Policy returns the effective policy.
func (p *Poller) Policy() Policy { return p.policy }

// Run polls with a discarding logger.
func Run(ctx context.Context, policy Policy, job *domain.RemoteJob, check CheckFunc) (*domain.StatusReport, int, error) {
	return New(policy, nil).Run(ctx, job, check)
}

// Run waits one interval before each query and stops at the first terminal
// state. It returns the last report, the number of queries issued and:
//   - nil when the vendor reported success
//   - domain.ErrVendorFailure when the vendor reported failure
//   - domain.ErrTimeout when the attempt budget ran out
//   - the query error, unchanged, when a status query failed
//   - ctx.Err() when ctx ended while waiting
//
// job.Status is updated on every observed transition.
func (p *Poller) Run(ctx context.Context, job *domain.RemoteJob, check CheckFunc) (*domain.StatusReport, int, error) {
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	var last *domain.StatusReport
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		if err := p.wait(ctx); err != nil {
			p.logger.Info().
				Str("provider", job.Provider).
				Str("job_id", job.ID).
				Int("attempt", attempt).
				Msg("polling cancelled")
			return last, attempt - 1, err
		}

		report, err := check(ctx, job)
		if err != nil {
			p.logger.Error().
				Err(err).
				Str("provider", job.Provider).
				Str("job_id", job.ID).
				Int("attempt", attempt).
				Msg("status query failed")
			return last, attempt, err
		}
		last = report

		if report.Status != job.Status {
			p.logger.Info().
				Str("provider", job.Provider).
				Str("job_id", job.ID).
				Str("from", string(job.Status)).
				Str("to", string(report.Status)).
				Str("raw_status", report.RawStatus).
				Int("attempt", attempt).
				Msg("job status")
			job.Status = report.Status
		}

		switch report.Status {
		case domain.JobStatusSucceeded:
			return report, attempt, nil
		case domain.JobStatusFailed:
			return report, attempt, &domain.Error{
				Kind:     domain.ErrVendorFailure,
				Provider: job.Provider,
				Model:    job.Model,
				JobID:    job.ID,
				Message:  report.Message,
			}
		}
	}
	return last, p.policy.MaxAttempts, &domain.Error{
		Kind:     domain.ErrTimeout,
		Provider: job.Provider,
		Model:    job.Model,
		JobID:    job.ID,
		Message:  fmt.Sprintf("no terminal state after %d attempts, outcome unknown", p.policy.MaxAttempts),
	}
}

func (p *Poller) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.policy.Interval == 0 {
		return nil
	}
	timer := time.NewTimer(p.policy.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
