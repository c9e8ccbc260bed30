package jobstore

import (
	"math"
	"time"

	"exam-workers/internal/models"
)

const (
	// aiCheckpoint is the stored progress while the recommendation call is in flight.
	aiCheckpoint = 25
	// aiCeiling is the checkpoint written once the call returns.
	aiCeiling = 90
	// aiExpected is how long the call usually takes.
	aiExpected = 35 * time.Second
)

// DisplayProgress is the value shown to pollers. While a job waits on the recommendation API
// (processing at exactly 25) it is interpolated toward 90 over aiExpected, measured from
// started_at or created_at. The estimate is never stored.
func DisplayProgress(job *models.ProcessingJob, now time.Time) (int, bool) {
	if job.Status != models.JobStatusProcessing || job.Progress != aiCheckpoint {
		return job.Progress, false
	}

	start := job.CreatedAt
	if job.StartedAt != nil {
		start = *job.StartedAt
	}
	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	ratio := math.Min(1, elapsed.Seconds()/aiExpected.Seconds())
	return int(math.Floor(aiCheckpoint + (aiCeiling-aiCheckpoint)*ratio)), true
}
