package scoreexam

// Anomaly kinds reported in Diagnostics.
const (
	AnomalyUnroutable = "unroutable" // question id outside the branch/environment ranges
	AnomalyUnmapped   = "unmapped"   // question id absent from the mapping
)

// Anomaly is one answer that did not contribute to the score.
type Anomaly struct {
	QuestionID string `json:"question_id"`
	Kind       string `json:"kind"`
}

// Diagnostics summarises a scoring run.
type Diagnostics struct {
	BranchAnswers      int       `json:"branch_answers"`
	EnvironmentAnswers int       `json:"environment_answers"`
	Anomalies          []Anomaly `json:"anomalies,omitempty"`
}
