package examsource

import (
	"context"
	"database/sql"
	stderrors "errors"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/models"
)

// PostgresSource reads the exam_enrollments table.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) GetEnrollment(ctx context.Context, examCode string) (*models.ExamEnrollment, error) {
	var (
		e                             models.ExamEnrollment
		answers                       []byte
		jobTitle, industry, seniority sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT exam_code, answers, job_title, industry, seniority
		FROM exam_enrollments
		WHERE exam_code = $1
		LIMIT 1`, examCode).Scan(&e.ExamCode, &answers, &jobTitle, &industry, &seniority)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(examCode)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_enrollment", err)
	}

	e.Answers = answers
	e.JobTitle = nullable(jobTitle)
	e.Industry = nullable(industry)
	e.Seniority = nullable(seniority)
	return &e, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
