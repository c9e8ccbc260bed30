package processexam

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"exam-workers/internal/common/aws"
	"exam-workers/internal/common/errors"
	"exam-workers/internal/common/i18n"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/common/metrics"
	"exam-workers/internal/common/observability"
	"exam-workers/internal/examsource"
	"exam-workers/internal/jobstore"
	"exam-workers/internal/models"
	getrecommendations "exam-workers/internal/workers/exam/get-recommendations"
	scoreexam "exam-workers/internal/workers/exam/score-exam"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	TaskType = "process-exam"
)

var (
	stepStarting        = checkpoint{0, i18n.StepStarting}
	stepValidating      = checkpoint{5, i18n.StepValidatingExam}
	stepParsing         = checkpoint{10, i18n.StepParsingAnswers}
	stepLoadingMapping  = checkpoint{15, i18n.StepLoadingCalculationData}
	stepScoring         = checkpoint{20, i18n.StepCalculatingFit}
	stepRecommending    = checkpoint{25, i18n.StepGettingRecommendations}
	stepProcessingReply = checkpoint{90, i18n.StepProcessingAIResponse}
	stepFinalizing      = checkpoint{95, i18n.StepFinalizingResults}
)

// localizedCodes are failures whose stored message is taken from the catalog.
var localizedCodes = map[errors.ErrorCode]string{
	errors.ErrCodeExamNotFound:     i18n.ExamNotFound,
	errors.ErrCodeInvalidExamData:  i18n.InvalidExamData,
	errors.ErrCodeCSVFileNotFound:  i18n.CSVFileNotFound,
	errors.ErrCodeCSVFileReadError: i18n.CSVFileReadError,
}

// Dependencies are the collaborators of a Handler. Events and Observability may be nil.
type Dependencies struct {
	Store         JobStore
	Source        examsource.Source
	Mappings      MappingProvider
	Engine        *scoreexam.Engine
	Recommender   Recommender
	Events        EventPublisher
	Observability *observability.Observability
}

// Handler runs one exam job from claim to terminal state.
type Handler struct {
	config *Config
	deps   Dependencies
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	if deps.Engine == nil {
		deps.Engine = scoreexam.NewEngine(log)
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	return &Handler{
		config: config,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
	}
}

// Process claims the job named by msg and drives it to completed or failed. Step failures are
// recorded on the job row and are not returned; an error is returned only when the job could
// not be looked up or claimed.
func (h *Handler) Process(ctx context.Context, msg models.QueueMessage) error {
	locale := msg.Locale
	if !i18n.IsSupported(locale) {
		locale = h.config.DefaultLocale
	}
	log := h.logger.WithFields(map[string]interface{}{
		"job_id":    msg.JobID,
		"exam_code": msg.ExamCode,
		"locale":    locale,
	})

	job, err := h.deps.Store.Get(ctx, msg.JobID)
	if stderrors.Is(err, jobstore.ErrJobNotFound) {
		log.Warn("job row not found, skipping", nil)
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPending {
		log.Info("job is not pending, skipping", map[string]interface{}{"status": string(job.Status)})
		return nil
	}

	if err := h.deps.Store.MarkProcessing(ctx, msg.JobID); err != nil {
		if stderrors.Is(err, jobstore.ErrInvalidTransition) || stderrors.Is(err, jobstore.ErrJobTerminal) {
			log.Info("job claimed elsewhere, skipping", nil)
			return nil
		}
		return err
	}

	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	start := h.now()
	log.Info("exam job started", nil)

	runCtx, cancel := context.WithTimeout(ctx, h.config.MaxRuntime)
	defer cancel()

	runCtx, span := h.deps.Observability.Tracer().Start(runCtx, TaskType, trace.WithAttributes(
		attribute.String("job.id", msg.JobID),
		attribute.String("exam.code", msg.ExamCode),
		attribute.String("locale", locale),
	))
	defer span.End()

	result, source, err := h.run(runCtx, span, msg, locale, log)
	if err != nil {
		h.fail(ctx, span, msg, locale, err, runCtx.Err() == context.DeadlineExceeded, start, log)
		return nil
	}

	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), h.config.WriteTimeout)
	defer cancelWrite()
	if err := h.deps.Store.MarkCompleted(writeCtx, msg.JobID, result); err != nil {
		h.fail(ctx, span, msg, locale, err, false, start, log)
		return nil
	}

	elapsed := h.now().Sub(start)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType, source).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.deps.Observability.RecordJobProcessed(writeCtx, string(models.JobStatusCompleted))
	h.deps.Observability.RecordJobDuration(writeCtx, elapsed, string(models.JobStatusCompleted))
	span.SetStatus(codes.Ok, "")

	log.Info("exam job completed", map[string]interface{}{
		"source":      source,
		"duration_ms": elapsed.Milliseconds(),
	})
	h.publish(writeCtx, aws.JobEvent{
		JobID:      msg.JobID,
		ExamCode:   msg.ExamCode,
		Status:     string(models.JobStatusCompleted),
		OccurredAt: h.now().UTC(),
	}, log)
	return nil
}

func (h *Handler) run(ctx context.Context, span trace.Span, msg models.QueueMessage, locale string, log logger.Logger) (json.RawMessage, string, error) {
	advance := func(c checkpoint) error {
		span.AddEvent(c.step, trace.WithAttributes(attribute.Int("progress", c.progress)))
		return h.deps.Store.UpdateProgress(ctx, msg.JobID, c.progress, i18n.T(locale, c.step))
	}

	if err := advance(stepStarting); err != nil {
		return nil, "", err
	}

	if err := advance(stepValidating); err != nil {
		return nil, "", err
	}
	enrollment, err := h.deps.Source.GetEnrollment(ctx, msg.ExamCode)
	if err != nil {
		return nil, "", err
	}

	if err := advance(stepParsing); err != nil {
		return nil, "", err
	}
	answers, err := scoreexam.ParseAnswers(enrollment.Answers)
	if err != nil {
		return nil, "", err
	}

	if err := advance(stepLoadingMapping); err != nil {
		return nil, "", err
	}
	m, err := h.deps.Mappings.Get()
	if err != nil {
		return nil, "", err
	}

	if err := advance(stepScoring); err != nil {
		return nil, "", err
	}
	profile, diag := h.deps.Engine.Score(answers, enrollment, m)
	for _, a := range diag.Anomalies {
		metrics.ScoringAnomalies.WithLabelValues(a.Kind).Inc()
	}
	log.Debug("exam scored", map[string]interface{}{
		"branch_answers":      diag.BranchAnswers,
		"environment_answers": diag.EnvironmentAnswers,
		"anomalies":           len(diag.Anomalies),
	})

	if err := advance(stepRecommending); err != nil {
		return nil, "", err
	}
	source := SourceAI
	result, err := h.deps.Recommender.GetRecommendations(ctx, profile, locale)
	if stderrors.Is(err, getrecommendations.ErrUnavailable) {
		log.Info("recommendation API disabled, storing raw score", nil)
		source = SourceRawScore
		result, err = json.Marshal(profile)
		if err != nil {
			return nil, "", errors.NewInternalError(err)
		}
	} else if err != nil {
		return nil, "", err
	}

	if err := advance(stepProcessingReply); err != nil {
		return nil, "", err
	}
	if err := advance(stepFinalizing); err != nil {
		return nil, "", err
	}
	return result, source, nil
}

// fail records err on the job row. The write uses a context detached from ctx so it lands
// after a deadline or shutdown.
func (h *Handler) fail(ctx context.Context, span trace.Span, msg models.QueueMessage, locale string, err error, timedOut bool, start time.Time, log logger.Logger) {
	message := FailureMessage(err, locale)
	code := "UNKNOWN"
	if stdErr, ok := errors.As(err); ok {
		code = string(stdErr.Code)
	}
	if timedOut {
		message = fmt.Sprintf("job exceeded maximum runtime of %s: %s", h.config.MaxRuntime, message)
		code = "TIMEOUT"
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, message)

	log.Error("exam job failed", map[string]interface{}{
		"error":      err.Error(),
		"error_code": code,
	})

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.WriteTimeout)
	defer cancel()

	if werr := h.deps.Store.MarkFailed(writeCtx, msg.JobID, message); werr != nil {
		log.Error("failed to record job failure", map[string]interface{}{"error": werr.Error()})
	}

	elapsed := h.now().Sub(start)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.deps.Observability.RecordJobProcessed(writeCtx, string(models.JobStatusFailed))
	h.deps.Observability.RecordJobDuration(writeCtx, elapsed, string(models.JobStatusFailed))

	h.publish(writeCtx, aws.JobEvent{
		JobID:        msg.JobID,
		ExamCode:     msg.ExamCode,
		Status:       string(models.JobStatusFailed),
		ErrorMessage: message,
		OccurredAt:   h.now().UTC(),
	}, log)
}

func (h *Handler) publish(ctx context.Context, evt aws.JobEvent, log logger.Logger) {
	if h.deps.Events == nil {
		return
	}
	if err := h.deps.Events.PublishJobEvent(context.WithoutCancel(ctx), evt); err != nil {
		log.Warn("failed to publish job event", map[string]interface{}{"error": err.Error()})
	}
}

// FailureMessage is the text stored on a failed job. Known domain failures use the catalog
// entry for locale; everything else keeps the underlying message verbatim.
func FailureMessage(err error, locale string) string {
	if stdErr, ok := errors.As(err); ok {
		if key, ok := localizedCodes[stdErr.Code]; ok && stdErr.Message == i18n.T(i18n.LocaleEnglish, key) {
			return i18n.T(locale, key)
		}
	}
	return errors.Message(err)
}
