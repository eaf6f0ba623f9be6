package domain

import "time"

// JobStatus enumerates the canonical remote job states every vendor
// vocabulary is mapped onto.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether polling must stop once s is observed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// RemoteJob is a generation job accepted by a vendor. Only the poller
// mutates Status after submission.
type RemoteJob struct {
	Provider    string
	Model       string
	ID          string
	SubmittedAt time.Time
	Status      JobStatus
}

// RemoteImage is one produced image as reported by the vendor.
type RemoteImage struct {
	Index       int
	URL         string
	Seed        *int64
	AuditStatus *int
}

// StatusReport is the outcome of a single status query.
type StatusReport struct {
	Status     JobStatus
	RawStatus  string
	Message    string
	Images     []RemoteImage
	Accounting *Accounting
}

// TaskStatus enumerates the lifecycle of a queued generation task record.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskRecord is the persisted view of a queued generation request.
type TaskRecord struct {
	ID           string            `json:"id" bson:"_id"`
	Provider     string            `json:"provider" bson:"provider"`
	Model        string            `json:"model" bson:"model"`
	Parameters   map[string]any    `json:"parameters" bson:"parameters"`
	Status       TaskStatus        `json:"status" bson:"status"`
	Result       *GenerationResult `json:"result,omitempty" bson:"result,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty" bson:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" bson:"updated_at"`
}
