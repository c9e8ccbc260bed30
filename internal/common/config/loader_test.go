package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: exams
    user: exam
  redis:
    address: localhost:6379
`

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.App.Locale)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Queue.Driver)
	assert.Equal(t, "exam:jobs:pending", cfg.Queue.PendingKey)
	assert.Equal(t, "exam:jobs:processing", cfg.Queue.ProcessingKey)
	assert.Equal(t, "postgres", cfg.ExamSource.Driver)
	assert.Equal(t, "localhost", cfg.ExamSource.Postgres.Host, "exam source falls back to the main database")
	assert.Equal(t, 10.0, cfg.APIs.Recommendation.TimeoutSeconds)
	assert.Equal(t, 3, cfg.APIs.Recommendation.RetryTimes)
	assert.Equal(t, 1000, cfg.APIs.Recommendation.BackoffBase)
	assert.Equal(t, "configs/AcademicFinderAlgorithm.csv", cfg.Mapping.CSVPath)

	worker := GetWorkerConfig(cfg, ProcessExamWorker)
	assert.True(t, worker.Enabled)
	assert.Equal(t, 90*time.Second, GetDuration(worker.Timeout))
	assert.Equal(t, time.Minute, GetDuration(worker.SweepInterval))
	assert.Equal(t, 10*time.Minute, GetDuration(worker.StaleAfter))
	assert.Equal(t, 10*time.Minute, GetDuration(worker.PendingStaleAfter))
}

func TestLoadFromFile_RecommendationSettings(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantRetries int
		wantTimeout time.Duration
	}{
		{
			name:        "unset keys take defaults",
			body:        minimalConfig,
			wantRetries: 3,
			wantTimeout: 10 * time.Second,
		},
		{
			name:        "explicit zero retries is kept",
			body:        minimalConfig + "apis:\n  recommendation:\n    retry_times: 0\n",
			wantRetries: 0,
			wantTimeout: 10 * time.Second,
		},
		{
			name:        "fractional timeout",
			body:        minimalConfig + "apis:\n  recommendation:\n    timeout_seconds: 2.5\n    retry_times: 1\n",
			wantRetries: 1,
			wantTimeout: 2500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromFile(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantRetries, cfg.APIs.Recommendation.RetryTimes)
			assert.Equal(t, tt.wantTimeout, cfg.APIs.Recommendation.Timeout())
		})
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_AI_URL", "http://ai.internal:9000")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
apis:
  recommendation:
    enabled: true
    base_url: ${TEST_AI_URL}
`))
	require.NoError(t, err)
	assert.Equal(t, "http://ai.internal:9000", cfg.APIs.Recommendation.BaseURL)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "database:\n  redis:\n    address: localhost:6379\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "unknown queue driver",
			body:    minimalConfig + "queue:\n  driver: kafka\n",
			wantErr: "queue.driver must be redis or zeebe",
		},
		{
			name:    "zeebe without broker",
			body:    minimalConfig + "queue:\n  driver: zeebe\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "elasticsearch source without address",
			body:    minimalConfig + "exam_source:\n  driver: elasticsearch\n",
			wantErr: "database.elasticsearch.addresses or url is required",
		},
		{
			name:    "recommendation enabled without url",
			body:    minimalConfig + "apis:\n  recommendation:\n    enabled: true\n",
			wantErr: "apis.recommendation.base_url is required",
		},
		{
			name:    "unsupported locale",
			body:    minimalConfig + "app:\n  locale: fr\n",
			wantErr: "app.locale must be en or ar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AI_API_BASE_URL", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigWarnings(t *testing.T) {
	cfg := &Config{
		APIs: APIsConfig{Recommendation: RecommendationConfig{
			Enabled:        true,
			TimeoutSeconds: 30,
			RetryTimes:     3,
			BackoffBase:    1000,
		}},
		Workers: map[string]WorkerConfig{ProcessExamWorker: {Timeout: 90000}},
	}
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "exceeds")

	cfg.APIs.Recommendation.TimeoutSeconds = 10
	assert.Empty(t, cfg.Warnings())

	// 3 x 27.5s plus 9s of backoff overshoots 90s only with the fraction counted
	cfg.APIs.Recommendation.TimeoutSeconds = 27.5
	cfg.APIs.Recommendation.RetryTimes = 2
	cfg.APIs.Recommendation.BackoffBase = 3000
	require.Len(t, cfg.Warnings(), 1)
}
