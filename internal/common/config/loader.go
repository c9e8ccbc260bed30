// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ProcessExamWorker is the Workers key holding the exam orchestrator settings.
const ProcessExamWorker = "process-exam"

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// APIS_RECOMMENDATION_BASE_URL overrides apis.recommendation.base_url
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)
	// defaulted only when unset; an explicit 0 means a single attempt
	v.SetDefault("apis.recommendation.retry_times", 3)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// an unset variable expands to "" so defaults and required checks apply
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that deployments pass as plain env vars.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Database.Redis.Password == "" {
		cfg.Database.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.APIs.Recommendation.BaseURL == "" {
		cfg.APIs.Recommendation.BaseURL = os.Getenv("AI_API_BASE_URL")
	}
	if cfg.Integrations.AWS.SNS.TopicARN == "" {
		cfg.Integrations.AWS.SNS.TopicARN = os.Getenv("EXAM_EVENTS_TOPIC_ARN")
	}

	// The exam source shares the main database unless configured separately.
	if cfg.ExamSource.Postgres.Host == "" {
		cfg.ExamSource.Postgres = cfg.Database.Postgres
		return
	}
	src := &cfg.ExamSource.Postgres
	if src.Port == 0 {
		src.Port = 5432
	}
	if src.SSLMode == "" {
		src.SSLMode = cfg.Database.Postgres.SSLMode
	}
	if src.MaxConnections == 0 {
		src.MaxConnections = 10
	}
	if src.MaxIdle == 0 {
		src.MaxIdle = 2
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "exam-workers"
	}
	if cfg.App.Locale == "" {
		cfg.App.Locale = "en"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Camunda.ProcessID == "" {
		cfg.Camunda.ProcessID = "exam-processing"
	}
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 120000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.ExamSource.Driver == "" {
		cfg.ExamSource.Driver = "postgres"
	}
	if cfg.ExamSource.Index == "" {
		cfg.ExamSource.Index = "exam_enrollments"
	}

	if cfg.Queue.Driver == "" {
		cfg.Queue.Driver = "redis"
	}
	if cfg.Queue.PendingKey == "" {
		cfg.Queue.PendingKey = "exam:jobs:pending"
	}
	if cfg.Queue.ProcessingKey == "" {
		cfg.Queue.ProcessingKey = "exam:jobs:processing"
	}
	if cfg.Queue.Workers == 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollTimeout == 0 {
		cfg.Queue.PollTimeout = 5000
	}

	if cfg.Mapping.CSVPath == "" {
		cfg.Mapping.CSVPath = "configs/AcademicFinderAlgorithm.csv"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	if _, ok := cfg.Workers[ProcessExamWorker]; !ok {
		cfg.Workers[ProcessExamWorker] = WorkerConfig{Enabled: true}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 90000
		}
		if worker.SweepInterval == 0 {
			worker.SweepInterval = 60000
		}
		if worker.StaleAfter == 0 {
			worker.StaleAfter = 600000
		}
		if worker.PendingStaleAfter == 0 {
			worker.PendingStaleAfter = 600000
		}
		cfg.Workers[key] = worker
	}

	if cfg.APIs.Recommendation.TimeoutSeconds == 0 {
		cfg.APIs.Recommendation.TimeoutSeconds = 10
	}
	if cfg.APIs.Recommendation.BackoffBase == 0 {
		cfg.APIs.Recommendation.BackoffBase = 1000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	switch cfg.Queue.Driver {
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for queue.driver=redis")
		}
	case "zeebe":
		if cfg.Camunda.BrokerAddress == "" {
			return fmt.Errorf("camunda.broker_address is required for queue.driver=zeebe")
		}
	default:
		return fmt.Errorf("queue.driver must be redis or zeebe, got %q", cfg.Queue.Driver)
	}

	switch cfg.ExamSource.Driver {
	case "postgres":
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for exam_source.driver=elasticsearch")
		}
	default:
		return fmt.Errorf("exam_source.driver must be postgres or elasticsearch, got %q", cfg.ExamSource.Driver)
	}

	if cfg.APIs.Recommendation.Enabled && cfg.APIs.Recommendation.BaseURL == "" {
		return fmt.Errorf("apis.recommendation.base_url is required when the recommendation API is enabled")
	}
	if cfg.APIs.Recommendation.RetryTimes < 0 {
		return fmt.Errorf("apis.recommendation.retry_times must not be negative")
	}

	switch cfg.App.Locale {
	case "en", "ar":
	default:
		return fmt.Errorf("app.locale must be en or ar, got %q", cfg.App.Locale)
	}

	return nil
}

// Warnings reports settings that load fine but are likely to misbehave.
func (c *Config) Warnings() []string {
	var out []string
	rec := c.APIs.Recommendation
	if rec.Enabled {
		worst := rec.Timeout() * time.Duration(rec.RetryTimes+1)
		for i := 0; i < rec.RetryTimes; i++ {
			worst += GetDuration(rec.BackoffBase) << i
		}
		budget := GetDuration(GetWorkerConfig(c, ProcessExamWorker).Timeout)
		if worst > budget {
			out = append(out, fmt.Sprintf(
				"recommendation API worst case %s exceeds %s job budget %s", worst, ProcessExamWorker, budget))
		}
	}
	return out
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:           true,
		MaxJobsActive:     5,
		Timeout:           90000,
		SweepInterval:     60000,
		StaleAfter:        600000,
		PendingStaleAfter: 600000,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
