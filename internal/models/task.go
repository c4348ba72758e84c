package models

import "time"

// Task status values. PENDING is the only non-terminal state.
const (
	StatusPending = "PENDING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// RetentionPeriod is the horizon applied to every task at creation.
const RetentionPeriod = 7 * 24 * time.Hour

// Stats holds the summary computed from the referenced file.
// LineCount is a pointer: nil means the line count could not be derived.
type Stats struct {
	ByteCount int64  `dynamodbav:"byte_count" json:"byte_count"`
	LineCount *int64 `dynamodbav:"line_count" json:"line_count"`
	SHA256    string `dynamodbav:"sha256" json:"sha256"`
}

// Task is the durable record, one item per (tenant partition, task id).
// PK is "tenant_default#<sub>"; SK duplicates TaskID as the sort key.
type Task struct {
	// Keys
	PK     string `dynamodbav:"pk" json:"pk"`
	SK     string `dynamodbav:"sk" json:"sk"`
	TaskID string `dynamodbav:"task_id" json:"task_id"`

	// Business
	FileKey     string `dynamodbav:"file_key" json:"file_key"`
	ClientToken string `dynamodbav:"client_token" json:"client_token"`

	// Processing/Status
	Status    string `dynamodbav:"status" json:"status"`
	ResultKey string `dynamodbav:"result_key,omitempty" json:"result_key,omitempty"`
	Error     string `dynamodbav:"error,omitempty" json:"error,omitempty"`
	Stats     *Stats `dynamodbav:"stats,omitempty" json:"stats,omitempty"`

	// Timestamps (RFC 3339 UTC; lexicographic order == chronological order)
	CreatedAt   string `dynamodbav:"created_at" json:"created_at"`
	ProcessedAt string `dynamodbav:"processed_at,omitempty" json:"processed_at,omitempty"`

	// Retention horizon for the external reaper, epoch seconds.
	TTL int64 `dynamodbav:"ttl" json:"ttl"`
}

// TaskView is the public shape returned on creation.
type TaskView struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	FileKey   string `json:"file_key"`
	CreatedAt string `json:"created_at"`
}

// View returns the public projection of the task.
func (t Task) View() TaskView {
	return TaskView{
		TaskID:    t.TaskID,
		Status:    t.Status,
		FileKey:   t.FileKey,
		CreatedAt: t.CreatedAt,
	}
}

// Terminal reports whether the task has reached DONE or FAILED. A set
// result_key also counts: it is only written on the terminal transition,
// so its presence marks the task processed even if observed before the
// status attribute.
func (t Task) Terminal() bool {
	return t.ResultKey != "" || t.Status == StatusDone || t.Status == StatusFailed
}
