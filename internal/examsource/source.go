// Package examsource reads completed exam enrollments from the exam database.
package examsource

import (
	"context"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/models"
)

const (
	DriverPostgres      = "postgres"
	DriverElasticsearch = "elasticsearch"
)

// Source loads the enrollment recorded for an exam code.
type Source interface {
	GetEnrollment(ctx context.Context, examCode string) (*models.ExamEnrollment, error)
}

func notFound(examCode string) error {
	return errors.NewNotFoundError(errors.ErrCodeExamNotFound, "Exam not found", "exam_code: "+examCode)
}
