package domain

import "context"

// TaskRepository persists queued generation tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *TaskRecord) error
	// Claim moves a queued task to running. It returns ErrDuplicateOperation
	// when the task is not queued, and ErrNotFound when it does not exist.
	Claim(ctx context.Context, taskID string) error
	UpdateStatus(ctx context.Context, taskID string, status TaskStatus, result *GenerationResult, errCode, errMsg string) error
	GetByID(ctx context.Context, taskID string) (*TaskRecord, error)
}
