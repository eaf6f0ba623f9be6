package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
	"imageservice/internal/metrics"
	"imageservice/internal/queue"
)

// TaskQueue carries task ids from the API to the workers.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskID string) error
	Dequeue(ctx context.Context, wait time.Duration) (string, error)
}

// TaskServiceOptions wires a TaskService. Queue may be nil for processes
// that only read task records.
type TaskServiceOptions struct {
	Generator *Generator
	Repo      domain.TaskRepository
	Queue     TaskQueue
	Logger    *infra.Logger
	Metrics   *metrics.Collector
}

// TaskService runs generation jobs asynchronously through a task queue.
type TaskService struct {
	gen     *Generator
	repo    domain.TaskRepository
	queue   TaskQueue
	logger  *infra.Logger
	metrics *metrics.Collector
	newID   func() string
}

func NewTaskService(opts TaskServiceOptions) (*TaskService, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("service: generator is required")
	}
	return &TaskService{
		gen:     opts.Generator,
		repo:    opts.Repo,
		queue:   opts.Queue,
		logger:  infra.OrNop(opts.Logger),
		metrics: opts.Metrics,
		newID:   uuid.NewString,
	}, nil
}

// Enqueue validates the request, stores a queued record and hands its id to
// the workers. Invalid requests never reach the store.
func (s *TaskService) Enqueue(ctx context.Context, provider, model string, params map[string]any) (*domain.TaskRecord, error) {
	if s.repo == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	if s.queue == nil {
		return nil, domain.ErrQueueNotConfigured
	}
	if _, _, err := s.gen.Prepare(provider, model, params); err != nil {
		return nil, err
	}

	task := &domain.TaskRecord{
		ID:         s.newID(),
		Provider:   provider,
		Model:      model,
		Parameters: params,
		Status:     domain.TaskStatusQueued,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := s.queue.Enqueue(ctx, task.ID); err != nil {
		if uerr := s.repo.UpdateStatus(ctx, task.ID, domain.TaskStatusFailed, nil, "internal", "enqueue failed"); uerr != nil {
			s.logger.Error().Err(uerr).Str("task_id", task.ID).Msg("mark unqueued task failed")
		}
		return nil, err
	}
	s.metrics.TaskEvent("enqueued")
	s.logger.Info().Str("task_id", task.ID).Str("provider", provider).Str("model", model).Msg("task enqueued")
	return task, nil
}

// Get returns the stored task record.
func (s *TaskService) Get(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	if s.repo == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	return s.repo.GetByID(ctx, taskID)
}

// Process claims and runs one task. Job failures are recorded on the task
// and are not returned; the returned error is reserved for store failures
// and lost claims.
func (s *TaskService) Process(ctx context.Context, taskID string) error {
	if s.repo == nil {
		return domain.ErrStoreNotConfigured
	}
	log := s.logger.With().Str("task_id", taskID).Logger()

	if err := s.repo.Claim(ctx, taskID); err != nil {
		if errors.Is(err, domain.ErrDuplicateOperation) {
			log.Warn().Msg("task already claimed")
		}
		return err
	}
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		// Claimed but unreadable: fail it rather than leave it running.
		s.metrics.TaskEvent("failed")
		if uerr := s.repo.UpdateStatus(context.WithoutCancel(ctx), taskID, domain.TaskStatusFailed, nil, "internal", "load task failed"); uerr != nil {
			log.Error().Err(uerr).Msg("mark unreadable task failed")
		}
		return fmt.Errorf("load claimed task: %w", err)
	}
	s.metrics.TaskEvent("started")

	result, genErr := s.gen.Generate(ctx, task.Provider, task.Model, task.Parameters)
	if genErr != nil {
		s.metrics.TaskEvent("failed")
		msg := genErr.Error()
		if vm := domain.VendorMessage(genErr); vm != "" {
			msg = vm
		}
		// The task context may already be cancelled; the record must still move on.
		if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), taskID, domain.TaskStatusFailed, nil, domain.ErrorCode(genErr), msg); err != nil {
			return fmt.Errorf("record task failure: %w", err)
		}
		log.Warn().Err(genErr).Msg("task failed")
		return nil
	}

	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), taskID, domain.TaskStatusSucceeded, result, "", ""); err != nil {
		return fmt.Errorf("record task result: %w", err)
	}
	s.metrics.TaskEvent("succeeded")
	log.Info().Str("job_id", result.ID).Msg("task succeeded")
	return nil
}

// Work consumes the queue until ctx is cancelled. Each dequeued id is
// processed inline, so running n Work loops gives n concurrent jobs. A zero
// wait would make BRPOP block forever and is raised to one second.
func (s *TaskService) Work(ctx context.Context, wait time.Duration) error {
	if s.queue == nil {
		return domain.ErrQueueNotConfigured
	}
	if wait <= 0 {
		wait = time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		id, err := s.queue.Dequeue(ctx, wait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			s.logger.Error().Err(err).Msg("dequeue failed")
			if !sleepCtx(ctx, wait) {
				return nil
			}
			continue
		}
		if err := s.Process(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("task_id", id).Msg("task processing failed")
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
