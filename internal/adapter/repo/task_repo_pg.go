package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
	"imageservice/internal/sqlinline"
)

// TaskRepositoryPG implements domain.TaskRepository on PostgreSQL.
type TaskRepositoryPG struct {
	db infra.SQLExecutor
}

// NewTaskRepository creates a task repository. db is usually an
// *infra.SQLRunner wrapping the pgx pool.
func NewTaskRepository(db infra.SQLExecutor) *TaskRepositoryPG {
	return &TaskRepositoryPG{db: db}
}

// EnsureSchema creates the task table when it does not exist yet.
func (r *TaskRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QTaskEnsureSchema); err != nil {
		return fmt.Errorf("ensure task schema: %w", err)
	}
	return nil
}

// Create inserts a new task record.
func (r *TaskRepositoryPG) Create(ctx context.Context, task *domain.TaskRecord) error {
	params, err := json.Marshal(orEmpty(task.Parameters))
	if err != nil {
		return fmt.Errorf("encode task parameters: %w", err)
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	_, err = r.db.Exec(ctx, sqlinline.QTaskInsert,
		task.ID,
		task.Provider,
		task.Model,
		params,
		string(task.Status),
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// Claim moves a queued task to running.
func (r *TaskRepositoryPG) Claim(ctx context.Context, taskID string) error {
	var id string
	err := r.db.QueryRow(ctx, sqlinline.QTaskClaim, taskID).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := r.db.QueryRow(ctx, sqlinline.QTaskExists, taskID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrDuplicateOperation
}

// UpdateStatus records a task transition and optionally its result.
func (r *TaskRepositoryPG) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus, result *domain.GenerationResult, errCode, errMsg string) error {
	var resultJSON []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode task result: %w", err)
		}
		resultJSON = b
	}
	tag, err := r.db.Exec(ctx, sqlinline.QTaskUpdateStatus, taskID, string(status), nullableBytes(resultJSON), errCode, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches a task by its identifier.
func (r *TaskRepositoryPG) GetByID(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	var (
		task       domain.TaskRecord
		status     string
		params     []byte
		resultJSON []byte
	)
	err := r.db.QueryRow(ctx, sqlinline.QTaskGetByID, taskID).Scan(
		&task.ID,
		&task.Provider,
		&task.Model,
		&params,
		&status,
		&resultJSON,
		&task.ErrorCode,
		&task.ErrorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	task.Status = domain.TaskStatus(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &task.Parameters); err != nil {
			return nil, fmt.Errorf("decode task parameters: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		var result domain.GenerationResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("decode task result: %w", err)
		}
		task.Result = &result
	}
	return &task, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ domain.TaskRepository = (*TaskRepositoryPG)(nil)
