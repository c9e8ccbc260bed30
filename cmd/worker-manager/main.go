// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"exam-workers/internal/api"
	"exam-workers/internal/common/aws"
	"exam-workers/internal/common/camunda"
	"exam-workers/internal/common/config"
	"exam-workers/internal/common/database"
	httpclient "exam-workers/internal/common/http"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/common/observability"
	"exam-workers/internal/examsource"
	"exam-workers/internal/jobstore"
	"exam-workers/internal/queue"
	getrecommendations "exam-workers/internal/workers/exam/get-recommendations"
	processexam "exam-workers/internal/workers/exam/process-exam"
	scoreexam "exam-workers/internal/workers/exam/score-exam"
	"exam-workers/pkg/mapping"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// worker is the consuming side of whichever queue backend is configured.
type worker interface {
	queue.Dispatcher
	queue.Consumer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting exam worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("queueDriver", cfg.Queue.Driver),
		zap.String("examSource", cfg.ExamSource.Driver),
	)
	for _, w := range cfg.Warnings() {
		zapLog.Warn("configuration warning", zap.String("warning", w))
	}

	obs, err := observability.New(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL (job store) with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	readiness := []database.Pinger{pg}

	// --- Exam source ---
	var source examsource.Source
	switch cfg.ExamSource.Driver {
	case examsource.DriverElasticsearch:
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		source = examsource.NewElasticsearchSource(es.Client, cfg.ExamSource.Index)
		readiness = append(readiness, es)
		zapLog.Info("Elasticsearch exam source ready", zap.String("index", cfg.ExamSource.Index))
	default:
		examDB := pg
		if cfg.ExamSource.Postgres.Host != cfg.Database.Postgres.Host ||
			cfg.ExamSource.Postgres.Database != cfg.Database.Postgres.Database {
			err = retryWithBackoff(func() error {
				var err error
				examDB, err = database.NewPostgres(cfg.ExamSource.Postgres)
				if err != nil {
					return err
				}
				return examDB.Ping(ctx)
			}, 15, 2*time.Second, zapLog, "Exam source PostgreSQL connection")
			if err != nil {
				zapLog.Fatal("exam source postgres failed after retries", zap.Error(err))
			}
			defer examDB.Close()
		}
		source = examsource.NewPostgresSource(examDB.DB)
	}

	// --- Queue ---
	var q worker
	switch cfg.Queue.Driver {
	case queue.DriverZeebe:
		var zc *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zc.Close()
		q = queue.NewZeebeQueue(zc, queue.ZeebeConfig{
			ProcessID:     cfg.Camunda.ProcessID,
			MaxJobsActive: cfg.Camunda.MaxJobsActive,
			Timeout:       config.GetDuration(cfg.Camunda.Timeout),
		}, log)
		readiness = append(readiness, zc)
		zapLog.Info("Zeebe client connected successfully")
	default:
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		q = queue.NewRedisQueue(rdb.Client, queue.RedisConfig{
			PendingKey:    cfg.Queue.PendingKey,
			ProcessingKey: cfg.Queue.ProcessingKey,
			Workers:       cfg.Queue.Workers,
			PollTimeout:   config.GetDuration(cfg.Queue.PollTimeout),
		}, log)
		readiness = append(readiness, rdb)
		zapLog.Info("Redis connected successfully")
	}

	// --- Mapping and recommendation client ---
	mappings := mapping.NewCached(cfg.Mapping.CSVPath)
	if m, err := mappings.Get(); err != nil {
		// jobs will fail with the mapping error until the file is present
		zapLog.Warn("reference mapping not loaded", zap.String("path", cfg.Mapping.CSVPath), zap.Error(err))
	} else {
		zapLog.Info("reference mapping loaded", zap.Int("questions", m.Len()))
	}

	recommender := getrecommendations.NewClient(
		getrecommendations.LoadConfig(cfg.APIs.Recommendation),
		httpclient.NewClient(),
		log,
	)
	readiness = append(readiness, recommender)

	store := jobstore.New(pg.DB)
	deps := processexam.Dependencies{
		Store:         store,
		Source:        source,
		Mappings:      mappings,
		Engine:        scoreexam.NewEngine(log),
		Recommender:   recommender,
		Observability: obs,
	}

	if cfg.Integrations.AWS.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		deps.Events = sns
		zapLog.Info("SNS job events enabled", zap.String("topic", cfg.Integrations.AWS.SNS.TopicARN))
	}

	handler := processexam.NewHandler(processexam.LoadConfig(cfg), deps, log)

	workerCfg := config.GetWorkerConfig(cfg, config.ProcessExamWorker)
	sweeper := jobstore.NewSweeper(store,
		config.GetDuration(workerCfg.SweepInterval),
		config.GetDuration(workerCfg.StaleAfter),
		config.GetDuration(workerCfg.PendingStaleAfter),
		log,
	)

	server := api.New(&api.Config{
		Port:            cfg.Server.Port,
		PublicURL:       cfg.Server.PublicURL,
		DefaultLocale:   cfg.App.Locale,
		ReadTimeout:     config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.GetDuration(cfg.Server.WriteTimeout),
		ShutdownTimeout: config.GetDuration(cfg.Server.ShutdownTimeout),
	}, store, q, readiness, log)

	g, gctx := errgroup.WithContext(ctx)

	if config.IsWorkerEnabled(cfg, config.ProcessExamWorker) {
		g.Go(func() error {
			zapLog.Info("exam worker started", zap.String("taskType", processexam.TaskType))
			return q.Run(gctx, handler.Process)
		})
		g.Go(func() error {
			sweeper.Run(gctx)
			return nil
		})
	} else {
		zapLog.Warn("process-exam worker disabled; API only")
	}

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutting down...")
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLog.Error("worker manager stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Worker manager stopped")
}
