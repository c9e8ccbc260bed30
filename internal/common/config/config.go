// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	ExamSource    ExamSourceConfig        `mapstructure:"exam_source"`
	Queue         QueueConfig             `mapstructure:"queue"`
	Mapping       MappingConfig           `mapstructure:"mapping"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Locale      string `mapstructure:"locale"` // fallback when a request names no supported locale
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	PublicURL       string `mapstructure:"public_url"`       // prefix for status_url; empty means relative
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	ProcessID      string `mapstructure:"process_id"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ExamSourceConfig selects where completed exams are read from.
type ExamSourceConfig struct {
	Driver   string         `mapstructure:"driver"` // postgres | elasticsearch
	Postgres PostgresConfig `mapstructure:"postgres"`
	Index    string         `mapstructure:"index"`
}

// QueueConfig selects the durable queue backing job dispatch.
type QueueConfig struct {
	Driver        string `mapstructure:"driver"` // redis | zeebe
	PendingKey    string `mapstructure:"pending_key"`
	ProcessingKey string `mapstructure:"processing_key"`
	Workers       int    `mapstructure:"workers"`
	PollTimeout   int    `mapstructure:"poll_timeout"` // milliseconds
}

// MappingConfig points at the reference/title CSV.
type MappingConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxJobsActive     int  `mapstructure:"max_jobs_active"`
	Timeout           int  `mapstructure:"timeout"`             // milliseconds; whole-job budget
	SweepInterval     int  `mapstructure:"sweep_interval"`      // milliseconds
	StaleAfter        int  `mapstructure:"stale_after"`         // milliseconds since last update of a processing job
	PendingStaleAfter int  `mapstructure:"pending_stale_after"` // milliseconds since creation of an unclaimed job
}

// IntegrationConfig holds settings for outbound event publishing.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
}

// RecommendationConfig configures the AI job recommendation endpoint.
type RecommendationConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds"` // per attempt; fractions allowed
	RetryTimes     int     `mapstructure:"retry_times"`     // attempts after the first; 0 disables retries
	BackoffBase    int     `mapstructure:"backoff_base"`    // milliseconds
}

// Timeout converts TimeoutSeconds to a duration.
func (r RecommendationConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds * float64(time.Second))
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ObservabilityConfig holds metrics and tracing settings.
type ObservabilityConfig struct {
	ServiceName    string  `mapstructure:"service_name"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
