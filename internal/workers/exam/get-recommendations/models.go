package getrecommendations

import (
	"exam-workers/internal/common/validation"
)

const (
	endpointDefault = "/job-bar/recommend"
	endpointArabic  = "/job-bar/recommend/ar"

	htmlErrorMessage    = "Server returned HTML error page (likely proxy/gateway issue)"
	defaultErrorMessage = "AI API returned error"
	maxErrorSnippet     = 200
)

// payloadSchema pins the request contract: 16 branches of five 0/1 flags and 10 environment
// slots numbered 1..10.
var payloadSchema = validation.MustCompileSchema(`{
  "type": "object",
  "required": ["job_title", "industry", "seniority", "selected_branches", "environment_status"],
  "properties": {
    "job_title": {"type": ["string", "null"]},
    "industry": {"type": ["string", "null"]},
    "seniority": {"type": ["string", "null"]},
    "selected_branches": {
      "type": "array",
      "minItems": 16,
      "maxItems": 16,
      "items": {
        "type": "object",
        "required": ["job_type", "chosen_competencies"],
        "properties": {
          "job_type": {"type": "string", "minLength": 1},
          "chosen_competencies": {
            "type": "array",
            "minItems": 5,
            "maxItems": 5,
            "items": {"type": "integer", "enum": [0, 1]}
          }
        }
      }
    },
    "environment_status": {
      "type": "array",
      "minItems": 10,
      "maxItems": 10,
      "items": {
        "type": "object",
        "required": ["question", "selected_option"],
        "properties": {
          "question": {"type": "integer", "minimum": 1, "maximum": 10},
          "selected_option": {"type": "integer", "enum": [0, 1]}
        }
      }
    }
  }
}`)

// apiError is the error body shape the recommendation service uses.
type apiError struct {
	Message interface{} `json:"message"`
	Error   interface{} `json:"error"`
	Detail  interface{} `json:"detail"`
}
