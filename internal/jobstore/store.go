// Package jobstore persists exam processing jobs in postgres. Every mutation carries a status
// predicate, so a row that reached completed or failed is never written again.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/models"
)

var (
	ErrJobNotFound       = stderrors.New("JOB_NOT_FOUND")
	ErrJobTerminal       = stderrors.New("JOB_TERMINAL")
	ErrInvalidTransition = stderrors.New("JOB_INVALID_TRANSITION")
)

const jobColumns = `id, job_id, exam_code, status, progress, current_step, result, error_message,
	started_at, completed_at, created_at, updated_at`

// Store is the postgres-backed job state store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a pending job at progress 0.
func (s *Store) Create(ctx context.Context, jobID, examCode string) (*models.ProcessingJob, error) {
	now := s.now()
	job := &models.ProcessingJob{
		JobID:     jobID,
		ExamCode:  examCode,
		Status:    models.JobStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO exam_processing_jobs (job_id, exam_code, status, progress, created_at, updated_at)
		VALUES ($1, $2, 'pending', 0, $3, $3)
		RETURNING id`, jobID, examCode, now).Scan(&job.ID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("create_job", err)
	}
	return job, nil
}

// Get loads a job by its public id.
func (s *Store) Get(ctx context.Context, jobID string) (*models.ProcessingJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM exam_processing_jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_job", err)
	}
	return job, nil
}

// MarkProcessing claims a pending job. Only one caller can win the claim.
func (s *Store) MarkProcessing(ctx context.Context, jobID string) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE exam_processing_jobs
		SET status = 'processing', progress = 0, started_at = $2, updated_at = $2
		WHERE job_id = $1 AND status = 'pending'`, jobID, now)
	return s.checkMutation(ctx, "mark_processing", jobID, res, err)
}

// UpdateProgress records a checkpoint on a processing job. Progress never moves backwards.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, progress int, step string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exam_processing_jobs
		SET progress = $2, current_step = $3, updated_at = $4
		WHERE job_id = $1 AND status = 'processing' AND progress <= $2`, jobID, progress, step, s.now())
	return s.checkMutation(ctx, "update_progress", jobID, res, err)
}

// MarkCompleted stores result and moves a processing job to completed at 100.
func (s *Store) MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE exam_processing_jobs
		SET status = 'completed', progress = 100, result = $2, completed_at = $3, updated_at = $3
		WHERE job_id = $1 AND status = 'processing'`, jobID, []byte(result), now)
	return s.checkMutation(ctx, "mark_completed", jobID, res, err)
}

// MarkFailed records message on a pending or processing job.
func (s *Store) MarkFailed(ctx context.Context, jobID, message string) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE exam_processing_jobs
		SET status = 'failed', error_message = $2, completed_at = $3, updated_at = $3
		WHERE job_id = $1 AND status IN ('pending', 'processing')`, jobID, message, now)
	return s.checkMutation(ctx, "mark_failed", jobID, res, err)
}

// checkMutation turns a zero-row update into the reason the predicate did not match.
func (s *Store) checkMutation(ctx context.Context, op, jobID string, res sql.Result, err error) error {
	if err != nil {
		return errors.NewQueryExecutionFailedError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError(op, err)
	}
	if n > 0 {
		return nil
	}

	var status models.JobStatus
	err = s.db.QueryRowContext(ctx, `SELECT status FROM exam_processing_jobs WHERE job_id = $1`, jobID).Scan(&status)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return ErrJobNotFound
	case err != nil:
		return errors.NewQueryExecutionFailedError(op, err)
	case status.IsTerminal():
		return ErrJobTerminal
	default:
		return ErrInvalidTransition
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*models.ProcessingJob, error) {
	var (
		job          models.ProcessingJob
		currentStep  sql.NullString
		result       []byte
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)
	err := row.Scan(&job.ID, &job.JobID, &job.ExamCode, &job.Status, &job.Progress, &currentStep,
		&result, &errorMessage, &startedAt, &completedAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if currentStep.Valid {
		job.CurrentStep = &currentStep.String
	}
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
