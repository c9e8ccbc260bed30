package models

import "encoding/json"

// ExamEnrollment is the stored record of a completed exam.
type ExamEnrollment struct {
	ExamCode  string          `json:"exam_code"`
	Answers   json.RawMessage `json:"answers"`
	JobTitle  *string         `json:"job_title,omitempty"`
	Industry  *string         `json:"industry,omitempty"`
	Seniority *string         `json:"seniority,omitempty"`
}

// AnswerSet maps question ids to recorded answers. Only 1 counts as selected.
type AnswerSet map[string]int

// CompetencyBranch is one job branch with five per-title flags.
type CompetencyBranch struct {
	JobType            string `json:"job_type"`
	ChosenCompetencies []int  `json:"chosen_competencies"`
}

// EnvironmentSlot is one environment-preference answer, Question counting from 1.
type EnvironmentSlot struct {
	Question       int `json:"question"`
	SelectedOption int `json:"selected_option"`
}

// ExamScoreResult is the scored profile sent to the recommendation API.
type ExamScoreResult struct {
	JobTitle          *string            `json:"job_title"`
	Industry          *string            `json:"industry"`
	Seniority         *string            `json:"seniority"`
	SelectedBranches  []CompetencyBranch `json:"selected_branches"`
	EnvironmentStatus []EnvironmentSlot  `json:"environment_status"`
}
