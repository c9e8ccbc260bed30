// Package api serves the exam submission and status endpoints alongside health, readiness
// and prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"exam-workers/internal/common/database"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/models"
	"exam-workers/internal/queue"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JobStore is the subset of the job state store the API needs.
type JobStore interface {
	Create(ctx context.Context, jobID, examCode string) (*models.ProcessingJob, error)
	Get(ctx context.Context, jobID string) (*models.ProcessingJob, error)
	MarkFailed(ctx context.Context, jobID, message string) error
}

type Config struct {
	Port            int
	PublicURL       string
	DefaultLocale   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	ReadyTimeout    time.Duration
}

type Server struct {
	config     *Config
	store      JobStore
	dispatcher queue.Dispatcher
	deps       []database.Pinger
	logger     logger.Logger
	now        func() time.Time
	newJobID   func() string
	httpServer *http.Server
}

// New builds the server. deps are pinged by /ready.
func New(config *Config, store JobStore, dispatcher queue.Dispatcher, deps []database.Pinger, log logger.Logger) *Server {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = 2 * time.Second
	}
	if config.DefaultLocale == "" {
		config.DefaultLocale = "en"
	}

	s := &Server{
		config:     config,
		store:      store,
		dispatcher: dispatcher,
		deps:       deps,
		logger:     log.WithFields(map[string]interface{}{"component": "api"}),
		now:        time.Now,
		newJobID:   uuid.NewString,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/exam-results/process", s.handleProcess)
	mux.HandleFunc("GET /api/exam-results/status/{jobId}", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withLogging(s.withRecovery(mux))
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]interface{}{"success": false, "message": message})
}
