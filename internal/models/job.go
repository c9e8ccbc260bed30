package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of an exam processing job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ProcessingJob is one row of exam_processing_jobs. Result and ErrorMessage are mutually
// exclusive; both are empty until the job is terminal.
type ProcessingJob struct {
	ID           int64           `json:"-" db:"id"`
	JobID        string          `json:"job_id" db:"job_id"`
	ExamCode     string          `json:"exam_code" db:"exam_code"`
	Status       JobStatus       `json:"status" db:"status"`
	Progress     int             `json:"progress" db:"progress"`
	CurrentStep  *string         `json:"current_step" db:"current_step"`
	Result       json.RawMessage `json:"result,omitempty" db:"result"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	StartedAt    *time.Time      `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// QueueMessage is the unit carried by the durable queue. Locale travels with the job so the
// worker never depends on request state.
type QueueMessage struct {
	JobID      string    `json:"job_id"`
	ExamCode   string    `json:"exam_code"`
	Locale     string    `json:"locale"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
