package getrecommendations

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"exam-workers/internal/common/errors"
	httpclient "exam-workers/internal/common/http"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/common/metrics"
	"exam-workers/internal/models"
)

const (
	TaskType = "get-recommendations"
)

var (
	// ErrUnavailable means the recommendation API is switched off; no request was made.
	ErrUnavailable = stderrors.New("RECOMMENDATION_API_DISABLED")
)

// Client calls the external job recommendation endpoint.
type Client struct {
	config *Config
	http   *httpclient.Client
	logger logger.Logger
}

func NewClient(config *Config, http *httpclient.Client, log logger.Logger) *Client {
	return &Client{
		config: config,
		http:   http,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Endpoint returns the URL used for locale.
func (c *Client) Endpoint(locale string) string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	if locale == "ar" {
		return base + endpointArabic
	}
	return base + endpointDefault
}

// GetRecommendations posts profile and returns the response body untouched. It makes
// RetryAttempts+1 attempts, backing off BackoffBase*2^(n-1) between them.
func (c *Client) GetRecommendations(ctx context.Context, profile *models.ExamScoreResult, locale string) (json.RawMessage, error) {
	if !c.config.Enabled {
		return nil, ErrUnavailable
	}

	if err := payloadSchema.Validate(profile); err != nil {
		return nil, errors.NewInvalidDataError("Invalid exam data", err.Error())
	}

	body, err := json.Marshal(profile)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("encode recommendation payload: %w", err))
	}

	url := c.Endpoint(locale)
	log := c.logger.WithFields(map[string]interface{}{"url": url, "locale": locale})
	log.Debug("recommendation request payload", map[string]interface{}{"payload": string(body)})

	attempts := c.config.RetryAttempts + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := c.config.BackoffBase * time.Duration(1<<(attempt-2))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, transportError(ctx.Err())
			}
		}

		start := time.Now()
		resp, err := c.http.PostJSON(ctx, url, body, c.config.Timeout)
		elapsed := time.Since(start)

		fields := map[string]interface{}{
			"attempt":     attempt,
			"attempts":    attempts,
			"duration_ms": elapsed.Milliseconds(),
		}

		switch {
		case err != nil:
			lastErr = transportError(err)
			observe("transport_error", elapsed)
			fields["outcome"] = "transport_error"
			fields["error"] = err.Error()
			log.Warn("recommendation request failed", fields)

		case !resp.IsSuccess():
			lastErr = errors.NewUpstreamError(TaskType, resp.StatusCode,
				fmt.Sprintf("AI API error (HTTP %d): %s", resp.StatusCode, extractErrorMessage(resp.Body)), nil)
			observe("http_error", elapsed)
			fields["outcome"] = "http_error"
			fields["status"] = resp.StatusCode
			log.Warn("recommendation request rejected", fields)

		default:
			observe("success", elapsed)
			fields["outcome"] = "success"
			fields["status"] = resp.StatusCode
			if !json.Valid(resp.Body) {
				log.Error("recommendation response is not JSON", fields)
				return nil, errors.NewUpstreamError(TaskType, resp.StatusCode,
					fmt.Sprintf("AI API error (HTTP %d): response is not valid JSON", resp.StatusCode), nil)
			}
			log.Info("recommendation request succeeded", fields)
			return json.RawMessage(resp.Body), nil
		}

		if ctx.Err() != nil {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// IsAvailable reports whether the API answers at all. Used by readiness checks.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if !c.config.Enabled {
		return false
	}
	resp, err := c.http.Get(ctx, strings.TrimRight(c.config.BaseURL, "/"), c.config.ProbeTimeout)
	if err != nil {
		return false
	}
	return resp.StatusCode < 500
}

// Name and Ping let the client take part in readiness checks.
func (c *Client) Name() string { return "recommendation_api" }

func (c *Client) Ping(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	if !c.IsAvailable(ctx) {
		return fmt.Errorf("recommendation API at %s is not reachable", c.config.BaseURL)
	}
	return nil
}

func transportError(err error) error {
	return errors.NewUpstreamError(TaskType, 0, fmt.Sprintf("AI API request failed: %v", err), err)
}

func observe(outcome string, elapsed time.Duration) {
	metrics.RecommendationAttempts.WithLabelValues(outcome).Inc()
	metrics.RecommendationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// extractErrorMessage picks a human message out of an error body.
func extractErrorMessage(body []byte) string {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, v := range []interface{}{parsed.Message, parsed.Error, parsed.Detail} {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}

	text := strings.TrimSpace(string(body))
	lower := strings.ToLower(text)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return htmlErrorMessage
	}
	if text == "" {
		return defaultErrorMessage
	}
	return truncate(text, maxErrorSnippet)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
