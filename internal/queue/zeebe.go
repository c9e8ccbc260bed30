package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exam-workers/internal/common/camunda"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// TaskType is the service task type the exam worker subscribes to.
const TaskType = "process-exam"

type instanceCreator interface {
	CreateInstance(ctx context.Context, processID string, vars interface{}) (int64, error)
}

// ZeebeConfig configures dispatch and consumption through a BPMN process.
type ZeebeConfig struct {
	ProcessID     string
	MaxJobsActive int
	Timeout       time.Duration
}

// ZeebeQueue starts one process instance per job; the process's service task is consumed by a
// zeebe job worker.
type ZeebeQueue struct {
	creator instanceCreator
	zbc     zbc.Client
	config  ZeebeConfig
	logger  logger.Logger
}

func NewZeebeQueue(client *camunda.Client, config ZeebeConfig, log logger.Logger) *ZeebeQueue {
	return &ZeebeQueue{
		creator: client,
		zbc:     client.GetClient(),
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"queue": DriverZeebe, "taskType": TaskType}),
	}
}

func (q *ZeebeQueue) Dispatch(ctx context.Context, msg models.QueueMessage) error {
	key, err := q.creator.CreateInstance(ctx, q.config.ProcessID, msg)
	if err != nil {
		return err
	}
	q.logger.Debug("process instance created", map[string]interface{}{
		"job_id":      msg.JobID,
		"instanceKey": key,
	})
	return nil
}

func (q *ZeebeQueue) Run(ctx context.Context, handler Handler) error {
	w := camunda.NewWorker(ctx, q.zbc, TaskType, q.config.MaxJobsActive, q.config.Timeout,
		func(ctx context.Context, variables string) error {
			msg, err := decodeVariables(variables)
			if err != nil {
				return err
			}
			return handler(ctx, msg)
		}, q.logger)

	<-ctx.Done()
	w.Stop()
	return nil
}

func decodeVariables(variables string) (models.QueueMessage, error) {
	var msg models.QueueMessage
	if err := json.Unmarshal([]byte(variables), &msg); err != nil {
		return msg, fmt.Errorf("decode job variables: %w", err)
	}
	if msg.JobID == "" {
		return msg, fmt.Errorf("job variables carry no job_id")
	}
	return msg, nil
}
