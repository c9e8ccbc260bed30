// Package queue carries exam jobs from the API to the worker pool. A message is delivered at
// most once; a job lost to a crash is failed by the stale-job sweeper, never replayed.
package queue

import (
	"context"

	"exam-workers/internal/models"
)

const (
	DriverRedis = "redis"
	DriverZeebe = "zeebe"
)

// Handler processes one dequeued message.
type Handler func(ctx context.Context, msg models.QueueMessage) error

// Dispatcher enqueues jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg models.QueueMessage) error
}

// Consumer feeds dequeued messages to handler until ctx is cancelled.
type Consumer interface {
	Run(ctx context.Context, handler Handler) error
}
