package jobstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

var jobRowColumns = []string{"id", "job_id", "exam_code", "status", "progress", "current_step", "result",
	"error_message", "started_at", "completed_at", "created_at", "updated_at"}

func TestCreate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO exam_processing_jobs").
		WithArgs("job-1", "EX-1", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	job, err := s.Create(context.Background(), "job-1", "EX-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO exam_processing_jobs").WillReturnError(stderrors.New("duplicate key"))

	_, err := s.Create(context.Background(), "job-1", "EX-1")
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, stdErr.Code)
}

func TestGet(t *testing.T) {
	s, mock := newMockStore(t)
	started := fixedNow.Add(-time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM exam_processing_jobs WHERE job_id = \\$1").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobRowColumns).AddRow(
			1, "job-1", "EX-1", "completed", 100, "Finalizing results...", []byte(`{"a":1}`),
			nil, started, fixedNow, started, fixedNow))

	job, err := s.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "Finalizing results...", *job.CurrentStep)
	assert.JSONEq(t, `{"a":1}`, string(job.Result))
	assert.Nil(t, job.ErrorMessage)
	assert.Equal(t, started, *job.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM exam_processing_jobs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMarkProcessing(t *testing.T) {
	tests := []struct {
		name       string
		rows       int64
		statusRow  *string
		wantErr    error
		expectRead bool
	}{
		{name: "claims pending job", rows: 1},
		{name: "already processing", rows: 0, statusRow: strPtr("processing"), wantErr: ErrInvalidTransition, expectRead: true},
		{name: "already completed", rows: 0, statusRow: strPtr("completed"), wantErr: ErrJobTerminal, expectRead: true},
		{name: "missing row", rows: 0, wantErr: ErrJobNotFound, expectRead: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectExec("UPDATE exam_processing_jobs SET status = 'processing'").
				WithArgs("job-1", fixedNow).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			if tt.expectRead {
				q := mock.ExpectQuery("SELECT status FROM exam_processing_jobs").WithArgs("job-1")
				if tt.statusRow != nil {
					q.WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(*tt.statusRow))
				} else {
					q.WillReturnError(sql.ErrNoRows)
				}
			}

			err := s.MarkProcessing(context.Background(), "job-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateProgress(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE exam_processing_jobs SET progress = \\$2, current_step = \\$3").
		WithArgs("job-1", 25, "Getting AI recommendations...", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateProgress(context.Background(), "job-1", 25, "Getting AI recommendations..."))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProgress_TerminalRowUntouched(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE exam_processing_jobs SET progress").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM exam_processing_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("failed"))

	err := s.UpdateProgress(context.Background(), "job-1", 90, "x")
	assert.ErrorIs(t, err, ErrJobTerminal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompleted(t *testing.T) {
	s, mock := newMockStore(t)
	result := json.RawMessage(`{"recommendations":[]}`)

	mock.ExpectExec("UPDATE exam_processing_jobs SET status = 'completed', progress = 100").
		WithArgs("job-1", []byte(result), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkCompleted(context.Background(), "job-1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE exam_processing_jobs SET status = 'failed', error_message = \\$2").
		WithArgs("job-1", "Exam not found", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkFailed(context.Background(), "job-1", "Exam not found"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed_DBError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE exam_processing_jobs").WillReturnError(stderrors.New("connection reset"))

	err := s.MarkFailed(context.Background(), "job-1", "boom")
	assert.True(t, errors.IsRetryable(err))
}

func TestStats(t *testing.T) {
	s, mock := newMockStore(t)
	since := fixedNow.Add(-24 * time.Hour)

	mock.ExpectQuery("SELECT\\s+COUNT\\(\\*\\) FILTER").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"p", "pr", "c", "f"}).AddRow(2, 1, 10, 3))

	st, err := s.Stats(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 2, Processing: 1, CompletedRecent: 10, FailedRecent: 3}, *st)
}

func TestRecent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM exam_processing_jobs ORDER BY created_at DESC LIMIT \\$1").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow(2, "job-2", "EX-2", "pending", 0, nil, nil, nil, nil, nil, fixedNow, fixedNow).
			AddRow(1, "job-1", "EX-1", "failed", 5, "Validating exam...", nil, "Exam not found", fixedNow, fixedNow, fixedNow, fixedNow))

	jobs, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].JobID)
	assert.Nil(t, jobs[0].StartedAt)
	assert.Equal(t, "Exam not found", *jobs[1].ErrorMessage)
}

func TestCountStale(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := fixedNow.Add(-10 * time.Minute)

	mock.ExpectQuery("status = \\$1 AND updated_at < \\$2").
		WithArgs("processing", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("status = \\$1 AND created_at < \\$2").
		WithArgs("pending", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	n, err := s.CountStale(context.Background(), models.JobStatusProcessing, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountStale(context.Background(), models.JobStatusPending, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.CountStale(context.Background(), models.JobStatusCompleted, cutoff)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailStale(t *testing.T) {
	processingCutoff := fixedNow.Add(-10 * time.Minute)
	pendingCutoff := fixedNow.Add(-30 * time.Minute)

	tests := []struct {
		name     string
		cutoffs  StaleCutoffs
		args     []driver.Value
		rows     *sqlmock.Rows
		expected []string
	}{
		{
			name:     "processing and pending cutoffs",
			cutoffs:  StaleCutoffs{ProcessingBefore: processingCutoff, PendingBefore: pendingCutoff},
			args:     []driver.Value{StaleJobMessage, UnclaimedJobMessage, fixedNow, processingCutoff, pendingCutoff},
			rows:     sqlmock.NewRows([]string{"job_id"}).AddRow("job-a").AddRow("job-b"),
			expected: []string{"job-a", "job-b"},
		},
		{
			name:     "pending rows only",
			cutoffs:  StaleCutoffs{PendingBefore: pendingCutoff},
			args:     []driver.Value{StaleJobMessage, UnclaimedJobMessage, fixedNow, nil, pendingCutoff},
			rows:     sqlmock.NewRows([]string{"job_id"}).AddRow("job-never-claimed"),
			expected: []string{"job-never-claimed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectQuery("UPDATE exam_processing_jobs (.+) WHERE \\(status = 'processing' (.+) OR \\(status = 'pending' (.+) created_at < \\$5\\)").
				WithArgs(tt.args...).
				WillReturnRows(tt.rows)

			ids, err := s.FailStale(context.Background(), tt.cutoffs, StaleJobMessage, UnclaimedJobMessage)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFailStale_NoCutoffsSkipsQuery(t *testing.T) {
	s, mock := newMockStore(t)

	ids, err := s.FailStale(context.Background(), StaleCutoffs{}, StaleJobMessage, UnclaimedJobMessage)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
