package processexam

import (
	"context"
	"encoding/json"

	"exam-workers/internal/common/aws"
	"exam-workers/internal/models"
	"exam-workers/pkg/mapping"
)

// Result sources recorded in metrics.
const (
	SourceAI       = "ai"
	SourceRawScore = "raw_score"
)

// JobStore is the subset of the job state store the orchestrator drives.
type JobStore interface {
	Get(ctx context.Context, jobID string) (*models.ProcessingJob, error)
	MarkProcessing(ctx context.Context, jobID string) error
	UpdateProgress(ctx context.Context, jobID string, progress int, step string) error
	MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error
	MarkFailed(ctx context.Context, jobID, message string) error
}

type Recommender interface {
	GetRecommendations(ctx context.Context, profile *models.ExamScoreResult, locale string) (json.RawMessage, error)
}

type MappingProvider interface {
	Get() (*mapping.ReferenceMapping, error)
}

type EventPublisher interface {
	PublishJobEvent(ctx context.Context, evt aws.JobEvent) error
}

type checkpoint struct {
	progress int
	step     string
}
