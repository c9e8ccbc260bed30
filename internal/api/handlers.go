package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"exam-workers/internal/common/database"
	"exam-workers/internal/common/errors"
	"exam-workers/internal/common/i18n"
	"exam-workers/internal/common/metrics"
	"exam-workers/internal/common/validation"
	"exam-workers/internal/jobstore"
	"exam-workers/internal/models"
)

// EstimatedTimeSeconds is the typical end-to-end time quoted to clients.
const EstimatedTimeSeconds = 40

// ProcessRequest is the body of POST /api/exam-results/process.
type ProcessRequest struct {
	ExamCode string `json:"exam_code" validate:"required,max=255"`
}

type ProcessData struct {
	JobID                string `json:"job_id"`
	StatusURL            string `json:"status_url"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
}

// StatusData is the body of a status response. Result/ErrorMessage and CompletedAt appear
// only once the job is terminal.
type StatusData struct {
	Status                     models.JobStatus `json:"status"`
	Progress                   int              `json:"progress"`
	DisplayProgress            int              `json:"display_progress"`
	DisplayProgressIsEstimated bool             `json:"display_progress_is_estimated"`
	CurrentStep                *string          `json:"current_step"`
	StartedAt                  *string          `json:"started_at"`
	Result                     json.RawMessage  `json:"result,omitempty"`
	ErrorMessage               *string          `json:"error_message,omitempty"`
	CompletedAt                *string          `json:"completed_at,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	locale := s.locale(r)

	req, fields := decodeProcessRequest(w, r)
	if fields == nil {
		fields = validation.Struct(req)
	}
	if fields != nil {
		message := i18n.T(locale, i18n.ValidationError)
		if msgs := fields["exam_code"]; len(msgs) > 0 {
			message = msgs[0]
		}
		verr := errors.NewValidationError(message, fields)
		s.jsonResponse(w, errors.HTTPStatus(verr), map[string]interface{}{
			"success": false,
			"message": verr.Message,
			"errors":  fields,
		})
		return
	}

	ctx := r.Context()
	jobID := s.newJobID()
	log := s.logger.WithFields(map[string]interface{}{"job_id": jobID, "exam_code": req.ExamCode})

	if _, err := s.store.Create(ctx, jobID, req.ExamCode); err != nil {
		log.Error("failed to create job", map[string]interface{}{"error": err.Error()})
		s.errorResponse(w, http.StatusInternalServerError, i18n.T(locale, i18n.ExamProcessingFailed))
		return
	}

	msg := models.QueueMessage{
		JobID:      jobID,
		ExamCode:   req.ExamCode,
		Locale:     locale,
		EnqueuedAt: s.now().UTC(),
	}
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		log.Error("failed to dispatch job", map[string]interface{}{"error": err.Error()})
		if ferr := s.store.MarkFailed(context.WithoutCancel(ctx), jobID, errors.Message(err)); ferr != nil {
			log.Error("failed to mark undispatched job failed", map[string]interface{}{"error": ferr.Error()})
		}
		s.errorResponse(w, http.StatusInternalServerError, i18n.T(locale, i18n.ExamProcessingFailed))
		return
	}

	metrics.ExamJobsSubmitted.WithLabelValues(locale).Inc()
	log.Info("exam processing job dispatched", nil)

	s.jsonResponse(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": i18n.T(locale, i18n.ExamProcessingStarted),
		"data": ProcessData{
			JobID:                jobID,
			StatusURL:            s.statusURL(jobID),
			EstimatedTimeSeconds: EstimatedTimeSeconds,
		},
	})
}

// decodeProcessRequest reads the body. An empty or malformed body decodes to the zero request
// so the required rule reports it; a non-string exam_code is reported directly.
func decodeProcessRequest(w http.ResponseWriter, r *http.Request) (ProcessRequest, map[string][]string) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&raw); err != nil {
		return ProcessRequest{}, nil
	}

	var req ProcessRequest
	value, ok := raw["exam_code"]
	if !ok || string(value) == "null" {
		return req, nil
	}
	if err := json.Unmarshal(value, &req.ExamCode); err != nil {
		return req, map[string][]string{"exam_code": {"The exam_code field must be a string."}}
	}
	req.ExamCode = strings.TrimSpace(req.ExamCode)
	return req, nil
}

func (s *Server) statusURL(jobID string) string {
	path := "/api/exam-results/status/" + jobID
	if s.config.PublicURL == "" {
		return path
	}
	return strings.TrimRight(s.config.PublicURL, "/") + path
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	locale := s.locale(r)
	jobID := r.PathValue("jobId")
	// every status response is live, errors included
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")

	job, err := s.store.Get(r.Context(), jobID)
	if stderrors.Is(err, jobstore.ErrJobNotFound) {
		s.errorResponse(w, http.StatusNotFound, i18n.T(locale, i18n.JobNotFound))
		return
	}
	if err != nil {
		s.logger.Error("failed to load job", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		s.errorResponse(w, errors.HTTPStatus(err), i18n.T(locale, i18n.ServerError))
		return
	}

	display, estimated := jobstore.DisplayProgress(job, s.now())
	data := StatusData{
		Status:                     job.Status,
		Progress:                   job.Progress,
		DisplayProgress:            display,
		DisplayProgressIsEstimated: estimated,
		CurrentStep:                job.CurrentStep,
		StartedAt:                  isoTime(job.StartedAt),
	}
	switch job.Status {
	case models.JobStatusCompleted:
		data.Result = job.Result
		if data.Result == nil {
			data.Result = json.RawMessage("null")
		}
		data.CompletedAt = isoTime(job.CompletedAt)
	case models.JobStatusFailed:
		data.ErrorMessage = job.ErrorMessage
		data.CompletedAt = isoTime(job.CompletedAt)
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success": job.Status != models.JobStatusFailed,
		"data":    data,
	})
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	failures := database.CheckAll(r.Context(), s.config.ReadyTimeout, s.deps...)
	if len(failures) == 0 {
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	checks := make(map[string]string, len(failures))
	for name, err := range failures {
		checks[name] = err.Error()
	}
	s.logger.Warn("readiness check failed", map[string]interface{}{"failures": checks})
	s.jsonResponse(w, http.StatusServiceUnavailable, map[string]interface{}{
		"status": "not_ready",
		"checks": checks,
	})
}
