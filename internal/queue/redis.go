package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// RedisConfig names the two lists backing the queue.
type RedisConfig struct {
	PendingKey    string
	ProcessingKey string
	Workers       int
	PollTimeout   time.Duration
	ErrorBackoff  time.Duration
}

// RedisQueue pushes onto the pending list and moves each message into the processing list while
// a worker holds it.
type RedisQueue struct {
	client redis.Cmdable
	config RedisConfig
	logger logger.Logger
}

func NewRedisQueue(client redis.Cmdable, config RedisConfig, log logger.Logger) *RedisQueue {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 5 * time.Second
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = time.Second
	}
	return &RedisQueue{
		client: client,
		config: config,
		logger: log.WithFields(map[string]interface{}{"queue": DriverRedis}),
	}
}

func (q *RedisQueue) Dispatch(ctx context.Context, msg models.QueueMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.NewDispatchFailedError(fmt.Errorf("encode message: %w", err))
	}
	if err := q.client.LPush(ctx, q.config.PendingKey, payload).Err(); err != nil {
		return errors.NewDispatchFailedError(fmt.Errorf("push %s: %w", q.config.PendingKey, err))
	}
	return nil
}

// Run starts config.Workers consumers and blocks until ctx is cancelled and every in-flight
// message has been handled.
func (q *RedisQueue) Run(ctx context.Context, handler Handler) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < q.config.Workers; i++ {
		id := i
		g.Go(func() error {
			q.consume(gCtx, id, handler)
			return nil
		})
	}

	q.logger.Info("queue consumers started", map[string]interface{}{
		"workers": q.config.Workers,
		"pending": q.config.PendingKey,
	})
	return g.Wait()
}

func (q *RedisQueue) consume(ctx context.Context, id int, handler Handler) {
	log := q.logger.WithFields(map[string]interface{}{"consumer": id})

	for ctx.Err() == nil {
		raw, err := q.client.BLMove(ctx, q.config.PendingKey, q.config.ProcessingKey,
			"RIGHT", "LEFT", q.config.PollTimeout).Result()
		if stderrors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", map[string]interface{}{"error": err.Error()})
			select {
			case <-time.After(q.config.ErrorBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		q.handle(ctx, log, raw, handler)
	}
}

func (q *RedisQueue) handle(ctx context.Context, log logger.Logger, raw string, handler Handler) {
	// the ack must land even when shutdown cancelled ctx mid-job
	defer q.ack(context.WithoutCancel(ctx), log, raw)

	var msg models.QueueMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		log.Error("dropping malformed message", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := handler(ctx, msg); err != nil {
		log.Error("handler returned error", map[string]interface{}{
			"job_id":    msg.JobID,
			"exam_code": msg.ExamCode,
			"error":     err.Error(),
		})
	}
}

func (q *RedisQueue) ack(ctx context.Context, log logger.Logger, raw string) {
	if err := q.client.LRem(ctx, q.config.ProcessingKey, 1, raw).Err(); err != nil {
		log.Warn("failed to ack message", map[string]interface{}{"error": err.Error()})
	}
}

// Depth reports the length of both lists.
func (q *RedisQueue) Depth(ctx context.Context) (pending, processing int64, err error) {
	if pending, err = q.client.LLen(ctx, q.config.PendingKey).Result(); err != nil {
		return 0, 0, err
	}
	if processing, err = q.client.LLen(ctx, q.config.ProcessingKey).Result(); err != nil {
		return 0, 0, err
	}
	return pending, processing, nil
}
