// cmd/tools/queue-status/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"exam-workers/internal/common/config"
	"exam-workers/internal/common/database"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/jobstore"
	"exam-workers/internal/models"
	"exam-workers/internal/queue"
)

// jobReporter is the read side of the job store the report needs.
type jobReporter interface {
	Stats(ctx context.Context, since time.Time) (*jobstore.Stats, error)
	Recent(ctx context.Context, limit int) ([]models.ProcessingJob, error)
	CountStale(ctx context.Context, status models.JobStatus, olderThan time.Time) (int, error)
}

type depthReporter interface {
	Depth(ctx context.Context) (pending, processing int64, err error)
}

type reportOptions struct {
	Window          time.Duration
	RecentLimit     int
	StuckProcessing time.Duration
	StuckPending    time.Duration
}

var (
	configPath string
	opts       = reportOptions{}
)

var rootCmd = &cobra.Command{
	Use:           "queue-status",
	Short:         "Show exam processing queue health",
	Long:          "Prints job counts, the most recent jobs and warnings for jobs that look stuck.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStatus,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: configs/config.yaml lookup)")
	rootCmd.Flags().DurationVar(&opts.Window, "window", 24*time.Hour, "Window for completed/failed counts")
	rootCmd.Flags().IntVarP(&opts.RecentLimit, "limit", "n", 10, "Number of recent jobs to list")
	rootCmd.Flags().DurationVar(&opts.StuckProcessing, "stuck-processing", 10*time.Minute, "Warn about processing jobs not updated for this long")
	rootCmd.Flags().DurationVar(&opts.StuckPending, "stuck-pending", 5*time.Minute, "Warn about pending jobs older than this")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		return err
	}

	var depth depthReporter
	if cfg.Queue.Driver == queue.DriverRedis {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err == nil {
			defer rdb.Close()
			depth = queue.NewRedisQueue(rdb.Client, queue.RedisConfig{
				PendingKey:    cfg.Queue.PendingKey,
				ProcessingKey: cfg.Queue.ProcessingKey,
			}, logger.NewNoOpLogger())
		}
	}

	return report(ctx, cmd.OutOrStdout(), jobstore.New(pg.DB), depth, opts, time.Now())
}

func report(ctx context.Context, w io.Writer, store jobReporter, depth depthReporter, o reportOptions, now time.Time) error {
	stats, err := store.Stats(ctx, now.Add(-o.Window))
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "=== Exam Processing Queue ===")
	fmt.Fprintf(w, "Pending:    %d\n", stats.Pending)
	fmt.Fprintf(w, "Processing: %d\n", stats.Processing)
	fmt.Fprintf(w, "Completed:  %d (last %s)\n", stats.CompletedRecent, humanWindow(o.Window))
	fmt.Fprintf(w, "Failed:     %d (last %s)\n", stats.FailedRecent, humanWindow(o.Window))

	if depth != nil {
		if pending, processing, err := depth.Depth(ctx); err == nil {
			fmt.Fprintf(w, "Redis lists: %d pending, %d in flight\n", pending, processing)
		} else {
			fmt.Fprintf(w, "Redis lists: unavailable (%v)\n", err)
		}
	}

	jobs, err := store.Recent(ctx, o.RecentLimit)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n=== Recent Jobs (%d) ===\n", len(jobs))
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
	}
	for _, j := range jobs {
		fmt.Fprintf(w, "%s  %s  %-10s %3d%%  %s\n",
			j.CreatedAt.Format("2006-01-02 15:04:05"),
			j.JobID,
			strings.ToUpper(string(j.Status)),
			j.Progress,
			duration(j, now),
		)
	}

	stuckProcessing, err := store.CountStale(ctx, models.JobStatusProcessing, now.Add(-o.StuckProcessing))
	if err != nil {
		return err
	}
	stuckPending, err := store.CountStale(ctx, models.JobStatusPending, now.Add(-o.StuckPending))
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	if stuckProcessing == 0 && stuckPending == 0 {
		fmt.Fprintln(w, "Queue is healthy")
		return nil
	}
	if stuckProcessing > 0 {
		fmt.Fprintf(w, "WARNING: %d job(s) processing with no update for over %s\n", stuckProcessing, o.StuckProcessing)
	}
	if stuckPending > 0 {
		fmt.Fprintf(w, "WARNING: %d job(s) pending for over %s; are workers running?\n", stuckPending, o.StuckPending)
	}
	return nil
}

// duration is completed-started for terminal jobs, now-started for running ones and "-" for
// jobs that never started.
func duration(j models.ProcessingJob, now time.Time) string {
	if j.StartedAt == nil {
		return "-"
	}
	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.StartedAt).Round(time.Second).String()
}

func humanWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
