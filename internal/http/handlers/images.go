package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"imageservice/internal/domain"
	"imageservice/pkg/zip"
)

const maxRequestBody = 1 << 20

type generateRequest struct {
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Parameters map[string]any `json:"parameters"`
}

type taskResponse struct {
	TaskID        string                   `json:"task_id"`
	Status        domain.TaskStatus        `json:"status"`
	Provider      string                   `json:"provider"`
	Model         string                   `json:"model"`
	Result        *domain.GenerationResult `json:"result,omitempty"`
	MissingImages []int                    `json:"missing_images,omitempty"`
	ErrorCode     string                   `json:"error_code,omitempty"`
	ErrorMessage  string                   `json:"error_message,omitempty"`
	CreatedAt     string                   `json:"created_at"`
	UpdatedAt     string                   `json:"updated_at"`
}

func (a *App) decodeGenerate(w http.ResponseWriter, r *http.Request) (*generateRequest, bool) {
	var req generateRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return nil, false
	}
	req.Provider = strings.TrimSpace(req.Provider)
	req.Model = strings.TrimSpace(req.Model)
	if req.Provider == "" || req.Model == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "provider and model are required")
		return nil, false
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}
	return &req, true
}

// ImagesGenerate runs a job synchronously and replies with its result.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeGenerate(w, r)
	if !ok {
		return
	}
	result, err := a.Generator.Generate(r.Context(), req.Provider, req.Model, req.Parameters)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, result)
}

// TasksCreate queues a job and replies 202 with the task id.
func (a *App) TasksCreate(w http.ResponseWriter, r *http.Request) {
	if a.Tasks == nil {
		a.fail(w, r, domain.ErrQueueNotConfigured)
		return
	}
	req, ok := a.decodeGenerate(w, r)
	if !ok {
		return
	}
	task, err := a.Tasks.Enqueue(r.Context(), req.Provider, req.Model, req.Parameters)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/images/tasks/"+task.ID)
	a.json(w, http.StatusAccepted, toTaskResponse(task))
}

func (a *App) TasksGet(w http.ResponseWriter, r *http.Request) {
	task, ok := a.loadTask(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toTaskResponse(task))
}

// TasksArchive streams every downloaded image of a succeeded task as a zip.
func (a *App) TasksArchive(w http.ResponseWriter, r *http.Request) {
	task, ok := a.loadTask(w, r)
	if !ok {
		return
	}
	if task.Status != domain.TaskStatusSucceeded || task.Result == nil {
		a.error(w, http.StatusConflict, "not_ready", "task has no result yet")
		return
	}
	var entries []zip.Entry
	for _, img := range task.Result.Images {
		if !img.Downloaded() || img.FileName == "" {
			continue
		}
		path, err := a.Generator.LocateArtifact(img.FileName)
		if err != nil {
			continue
		}
		entries = append(entries, zip.Entry{Name: img.FileName, Path: path, Modified: task.Result.CreatedAt})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no downloaded images for task")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=task-%s.zip", task.ID))
	w.WriteHeader(http.StatusOK)
	if err := zip.Write(w, entries); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("task_id", task.ID).Msg("write task archive")
	}
}

func (a *App) loadTask(w http.ResponseWriter, r *http.Request) (*domain.TaskRecord, bool) {
	if a.Tasks == nil {
		a.fail(w, r, domain.ErrStoreNotConfigured)
		return nil, false
	}
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "task id required")
		return nil, false
	}
	task, err := a.Tasks.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return task, true
}

func toTaskResponse(t *domain.TaskRecord) taskResponse {
	return taskResponse{
		TaskID:        t.ID,
		Status:        t.Status,
		Provider:      t.Provider,
		Model:         t.Model,
		Result:        t.Result,
		MissingImages: t.Result.MissingImages(),
		ErrorCode:     t.ErrorCode,
		ErrorMessage:  t.ErrorMessage,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
