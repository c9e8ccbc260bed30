package camunda

import (
	"context"
	"time"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// HandlerFunc processes the variables of one activated job.
type HandlerFunc func(ctx context.Context, variables string) error

// CamundaWorker is an open zeebe job worker for a single task type.
type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker. Jobs are completed after handler returns nil and failed with
// zero retries otherwise. ctx bounds every handler invocation.
func NewWorker(
	ctx context.Context,
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handler HandlerFunc,
	log logger.Logger,
) *CamundaWorker {
	errHandler := errors.NewErrorHandler(log)

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(func(jc worker.JobClient, job entities.Job) {
			if err := handler(ctx, job.GetVariables()); err != nil {
				errHandler.HandleJobError(ctx, jc, job, err)
				return
			}
			if _, err := jc.NewCompleteJobCommand().JobKey(job.GetKey()).Send(ctx); err != nil {
				log.Error("failed to complete job", map[string]interface{}{
					"jobKey": job.GetKey(),
					"error":  err.Error(),
				})
			}
		}).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Open()

	log.Info("worker started", map[string]interface{}{"taskType": taskType})

	return &CamundaWorker{worker: jobWorker, logger: log, taskType: taskType}
}

// Stop closes the job worker and waits for in-flight handlers.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
