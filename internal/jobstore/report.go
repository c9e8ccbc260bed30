package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/models"
)

// Stats is a point-in-time summary of the job table.
type Stats struct {
	Pending         int `json:"pending"`
	Processing      int `json:"processing"`
	CompletedRecent int `json:"completed_recent"`
	FailedRecent    int `json:"failed_recent"`
}

// Stats counts open jobs plus jobs that finished after since.
func (s *Store) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed' AND updated_at >= $1),
			COUNT(*) FILTER (WHERE status = 'failed' AND updated_at >= $1)
		FROM exam_processing_jobs`, since).
		Scan(&st.Pending, &st.Processing, &st.CompletedRecent, &st.FailedRecent)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("job_stats", err)
	}
	return &st, nil
}

// Recent returns the newest jobs first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.ProcessingJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM exam_processing_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("recent_jobs", err)
	}
	defer rows.Close()

	var jobs []models.ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("recent_jobs", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("recent_jobs", err)
	}
	return jobs, nil
}

// CountStale counts jobs stuck in status since before olderThan. Processing jobs are aged by
// their last update, pending jobs by creation.
func (s *Store) CountStale(ctx context.Context, status models.JobStatus, olderThan time.Time) (int, error) {
	var column string
	switch status {
	case models.JobStatusProcessing:
		column = "updated_at"
	case models.JobStatusPending:
		column = "created_at"
	default:
		return 0, fmt.Errorf("stale count is only defined for open jobs, got %q", status)
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exam_processing_jobs WHERE status = $1 AND `+column+` < $2`,
		string(status), olderThan).Scan(&n)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("count_stale", err)
	}
	return n, nil
}

// StaleCutoffs bounds how long a job may sit in each non-terminal status.
// A zero cutoff leaves that status alone.
type StaleCutoffs struct {
	ProcessingBefore time.Time // compared against updated_at
	PendingBefore    time.Time // compared against created_at
}

// FailStale fails processing jobs not updated since ProcessingBefore and
// pending jobs created before PendingBefore, and returns their ids.
func (s *Store) FailStale(ctx context.Context, cutoffs StaleCutoffs, processingMsg, pendingMsg string) ([]string, error) {
	if cutoffs.ProcessingBefore.IsZero() && cutoffs.PendingBefore.IsZero() {
		return nil, nil
	}
	now := s.now()
	rows, err := s.db.QueryContext(ctx, `
		UPDATE exam_processing_jobs
		SET status = 'failed',
			error_message = CASE WHEN status = 'pending' THEN $2 ELSE $1 END,
			completed_at = $3, updated_at = $3
		WHERE (status = 'processing' AND $4::timestamptz IS NOT NULL AND updated_at < $4)
			OR (status = 'pending' AND $5::timestamptz IS NOT NULL AND created_at < $5)
		RETURNING job_id`,
		processingMsg, pendingMsg, now, nullTime(cutoffs.ProcessingBefore), nullTime(cutoffs.PendingBefore))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("fail_stale", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewQueryExecutionFailedError("fail_stale", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("fail_stale", err)
	}
	return ids, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
