package scoreexam

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/models"
	"exam-workers/pkg/mapping"
)

const (
	TaskType = "score-exam"
)

// Engine turns an answer set into an ExamScoreResult. It holds no state between calls.
type Engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Score partitions answers, scores both profiles and copies the descriptive fields from the
// enrollment. Anomalies are logged and returned, never fatal.
func (e *Engine) Score(answers models.AnswerSet, enrollment *models.ExamEnrollment, m *mapping.ReferenceMapping) (*models.ExamScoreResult, Diagnostics) {
	branchAnswers, envAnswers, anomalies := PartitionAnswers(answers)

	result := &models.ExamScoreResult{
		SelectedBranches:  ScoreBranches(branchAnswers, m),
		EnvironmentStatus: ScoreEnvironment(envAnswers, m),
	}
	if enrollment != nil {
		result.JobTitle = enrollment.JobTitle
		result.Industry = enrollment.Industry
		result.Seniority = enrollment.Seniority
	}

	for _, id := range sortedKeys(branchAnswers) {
		if _, ok := m.Lookup(id); !ok {
			anomalies = append(anomalies, Anomaly{QuestionID: id, Kind: AnomalyUnmapped})
		}
	}
	for _, id := range sortedKeys(envAnswers) {
		if _, ok := m.Lookup(id); !ok {
			anomalies = append(anomalies, Anomaly{QuestionID: id, Kind: AnomalyUnmapped})
		}
	}

	diag := Diagnostics{
		BranchAnswers:      len(branchAnswers),
		EnvironmentAnswers: len(envAnswers),
		Anomalies:          anomalies,
	}
	for _, a := range anomalies {
		e.logger.Warn("answer skipped during scoring", map[string]interface{}{
			"questionId": a.QuestionID,
			"kind":       a.Kind,
		})
	}
	return result, diag
}

// PartitionAnswers routes answers by the first character of the question id: '1'-'4' are
// branch questions, '5' environment questions. Everything else is returned as an anomaly.
func PartitionAnswers(answers models.AnswerSet) (branch, environment models.AnswerSet, anomalies []Anomaly) {
	branch = models.AnswerSet{}
	environment = models.AnswerSet{}

	for _, id := range sortedKeys(answers) {
		switch {
		case id == "":
			anomalies = append(anomalies, Anomaly{QuestionID: id, Kind: AnomalyUnroutable})
		case id[0] >= '1' && id[0] <= '4':
			branch[id] = answers[id]
		case id[0] == '5':
			environment[id] = answers[id]
		default:
			anomalies = append(anomalies, Anomaly{QuestionID: id, Kind: AnomalyUnroutable})
		}
	}
	return branch, environment, anomalies
}

// ScoreBranches emits the 16 branches in table order. Each competency is the majority value of
// the answers recorded under one title, walking titles in the mapping's order for the branch
// reference. Missing titles score 0 and the vector is always exactly five wide.
func ScoreBranches(branchAnswers models.AnswerSet, m *mapping.ReferenceMapping) []models.CompetencyBranch {
	byTitle := make(map[string]map[string][]int)
	for id, value := range branchAnswers {
		entry, ok := m.Lookup(id)
		if !ok {
			continue
		}
		if byTitle[entry.Reference] == nil {
			byTitle[entry.Reference] = make(map[string][]int)
		}
		byTitle[entry.Reference][entry.Title] = append(byTitle[entry.Reference][entry.Title], value)
	}

	out := make([]models.CompetencyBranch, 0, len(branchTable))
	for _, b := range branchTable {
		competencies := make([]int, CompetenciesPerBranch)
		for i, title := range m.Titles(b.Reference) {
			if i >= CompetenciesPerBranch {
				break
			}
			competencies[i] = MajorityValue(byTitle[b.Reference][title])
		}
		out = append(out, models.CompetencyBranch{
			JobType:            b.Label,
			ChosenCompetencies: competencies,
		})
	}
	return out
}

// ScoreEnvironment emits the 10 environment slots in table order, pooling every mapped answer of
// a reference regardless of title.
func ScoreEnvironment(envAnswers models.AnswerSet, m *mapping.ReferenceMapping) []models.EnvironmentSlot {
	byReference := make(map[string][]int)
	for id, value := range envAnswers {
		entry, ok := m.Lookup(id)
		if !ok {
			continue
		}
		byReference[entry.Reference] = append(byReference[entry.Reference], value)
	}

	out := make([]models.EnvironmentSlot, 0, len(environmentTable))
	for i, ref := range environmentTable {
		out = append(out, models.EnvironmentSlot{
			Question:       i + 1,
			SelectedOption: MajorityValue(byReference[ref]),
		})
	}
	return out
}

// MajorityValue is 1 when at least MajorityThreshold values equal 1, else 0.
func MajorityValue(values []int) int {
	ones := 0
	for _, v := range values {
		if v == 1 {
			ones++
		}
	}
	if ones >= MajorityThreshold {
		return 1
	}
	return 0
}

// ParseAnswers decodes the stored answers blob. It accepts a JSON object keyed by question id or
// an array whose indexes are the ids. Numbers, numeric strings and booleans become ints; any
// other value counts as 0.
func ParseAnswers(blob []byte) (models.AnswerSet, error) {
	trimmed := strings.TrimSpace(string(blob))
	if trimmed == "" || trimmed == "null" {
		return nil, errors.NewInvalidDataError("Invalid exam data", "answers are empty")
	}

	var raw interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, errors.NewInvalidDataError("Invalid exam data", fmt.Sprintf("answers are not valid JSON: %v", err))
	}

	answers := models.AnswerSet{}
	switch v := raw.(type) {
	case map[string]interface{}:
		for id, val := range v {
			answers[id] = coerce(val)
		}
	case []interface{}:
		for i, val := range v {
			answers[strconv.Itoa(i)] = coerce(val)
		}
	default:
		return nil, errors.NewInvalidDataError("Invalid exam data", "answers must be a JSON object")
	}

	if len(answers) == 0 {
		return nil, errors.NewInvalidDataError("Invalid exam data", "answers are empty")
	}
	return answers, nil
}

func coerce(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return 0
	default:
		return 0
	}
}

func sortedKeys(a models.AnswerSet) []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
