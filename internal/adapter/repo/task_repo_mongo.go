package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"imageservice/internal/domain"
)

// TaskCollection is the MongoDB collection holding task records.
const TaskCollection = "image_tasks"

// TaskRepositoryMongo implements domain.TaskRepository on MongoDB.
type TaskRepositoryMongo struct {
	coll *mongo.Collection
}

// NewTaskRepositoryMongo stores tasks in db's image_tasks collection.
func NewTaskRepositoryMongo(db *mongo.Database) *TaskRepositoryMongo {
	return &TaskRepositoryMongo{coll: db.Collection(TaskCollection)}
}

// EnsureIndexes creates the status index used by operators to list stuck tasks.
func (r *TaskRepositoryMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}},
		Options: options.Index().SetName("status_updated_at"),
	})
	return err
}

func (r *TaskRepositoryMongo) Create(ctx context.Context, task *domain.TaskRecord) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	if task.Parameters == nil {
		task.Parameters = map[string]any{}
	}
	_, err := r.coll.InsertOne(ctx, task)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicateOperation
	}
	return err
}

func (r *TaskRepositoryMongo) Claim(ctx context.Context, taskID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": taskID, "status": domain.TaskStatusQueued},
		bson.M{"$set": bson.M{"status": domain.TaskStatusRunning, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": taskID})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrDuplicateOperation
}

func (r *TaskRepositoryMongo) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus, result *domain.GenerationResult, errCode, errMsg string) error {
	set := bson.M{
		"status":        status,
		"error_code":    errCode,
		"error_message": errMsg,
		"updated_at":    time.Now().UTC(),
	}
	if result != nil {
		set["result"] = result
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": taskID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TaskRepositoryMongo) GetByID(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	raw, err := r.coll.FindOne(ctx, bson.M{"_id": taskID}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return decodeTask(raw)
}

// decodeTask unmarshals a stored task. Nested documents inside Parameters
// come back as bson.D by default; the normalizers expect the same plain
// maps and slices a JSON request produces.
func decodeTask(raw bson.Raw) (*domain.TaskRecord, error) {
	var task domain.TaskRecord
	if err := bson.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if task.Parameters != nil {
		task.Parameters = plainMap(task.Parameters)
	}
	return &task, nil
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.M:
		return plainMap(t)
	case map[string]any:
		return plainMap(t)
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}

var _ domain.TaskRepository = (*TaskRepositoryMongo)(nil)
