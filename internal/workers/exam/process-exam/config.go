package processexam

import (
	"time"

	"exam-workers/internal/common/config"
)

type Config struct {
	MaxRuntime    time.Duration
	DefaultLocale string
	// WriteTimeout bounds the terminal write made after the run context is gone.
	WriteTimeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	worker := config.GetWorkerConfig(cfg, config.ProcessExamWorker)

	c := &Config{
		MaxRuntime:    config.GetDuration(worker.Timeout),
		DefaultLocale: cfg.App.Locale,
		WriteTimeout:  5 * time.Second,
	}
	if c.MaxRuntime <= 0 {
		c.MaxRuntime = 90 * time.Second
	}
	if c.DefaultLocale == "" {
		c.DefaultLocale = "en"
	}
	return c
}
