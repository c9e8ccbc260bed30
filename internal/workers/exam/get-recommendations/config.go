package getrecommendations

import (
	"time"

	"exam-workers/internal/common/config"
)

type Config struct {
	Enabled       bool
	BaseURL       string
	Timeout       time.Duration // per attempt
	RetryAttempts int           // attempts after the first
	BackoffBase   time.Duration
	ProbeTimeout  time.Duration
}

func LoadConfig(rc config.RecommendationConfig) *Config {
	cfg := &Config{
		Enabled:       rc.Enabled,
		BaseURL:       rc.BaseURL,
		Timeout:       rc.Timeout(),
		RetryAttempts: rc.RetryTimes,
		BackoffBase:   config.GetDuration(rc.BackoffBase),
		ProbeTimeout:  2 * time.Second,
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	return cfg
}
