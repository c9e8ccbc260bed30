package jobstore

import (
	"context"
	"time"

	"exam-workers/internal/common/logger"
	"exam-workers/internal/common/metrics"
)

const (
	// StaleJobMessage is recorded on processing jobs the sweeper fails.
	StaleJobMessage = "job exceeded maximum runtime"
	// UnclaimedJobMessage is recorded on pending jobs no worker ever claimed.
	UnclaimedJobMessage = "job was never picked up by a worker"
)

// Sweeper periodically fails jobs that were abandoned: processing jobs whose
// worker stopped updating them and pending jobs nobody claimed.
type Sweeper struct {
	store        *Store
	interval     time.Duration
	staleAfter   time.Duration
	pendingAfter time.Duration
	logger       logger.Logger
}

func NewSweeper(store *Store, interval, staleAfter, pendingAfter time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if pendingAfter <= 0 {
		pendingAfter = 10 * time.Minute
	}
	return &Sweeper{
		store:        store,
		interval:     interval,
		staleAfter:   staleAfter,
		pendingAfter: pendingAfter,
		logger:       log.WithFields(map[string]interface{}{"component": "stale-job-sweeper"}),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("stale job sweep failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// Sweep fails every abandoned job once and returns their ids.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	now := s.store.now()
	ids, err := s.store.FailStale(ctx, StaleCutoffs{
		ProcessingBefore: now.Add(-s.staleAfter),
		PendingBefore:    now.Add(-s.pendingAfter),
	}, StaleJobMessage, UnclaimedJobMessage)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		metrics.StaleJobsFailed.Add(float64(len(ids)))
		s.logger.Warn("failed stale jobs", map[string]interface{}{
			"count":   len(ids),
			"job_ids": ids,
		})
	}
	return ids, nil
}
