package scoreexam

import (
	"strconv"
	"strings"
	"testing"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/models"
	"exam-workers/pkg/mapping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `code,Title,Reference
,Open Thinking Jobs,R17-Title
10001,Creativity,R17
10002,Creativity,R17
10003,Creativity,R17
10004,Creativity,R17
10005,Creativity,R17
10006,Curiosity,R17
10007,Curiosity,R17
10008,Imagination,R17
10009,Vision,R17
10010,Flexibility,R17
10011,Originality,R17
20001,Precision,R18
20002,Precision,R18
20003,Logic,R18
50001,Remote,R33
50002,Remote,R33
50003,Office,R33
50004,Teamwork,R34
50005,Teamwork,R34
`

func testMapping(t *testing.T) *mapping.ReferenceMapping {
	t.Helper()
	m, err := mapping.Parse(strings.NewReader(testCSV))
	require.NoError(t, err)
	return m
}

func strPtr(s string) *string { return &s }

func TestTables(t *testing.T) {
	branches := BranchTable()
	seen := map[string]bool{}
	for _, b := range branches {
		assert.NotEmpty(t, b.Label)
		assert.False(t, seen[b.Reference], "duplicate reference %s", b.Reference)
		seen[b.Reference] = true
	}
	assert.Equal(t, "R17", branches[0].Reference)
	assert.Equal(t, "Open Thinking Jobs", branches[0].Label)
	assert.Equal(t, "R32", branches[15].Reference)

	env := EnvironmentTable()
	assert.Equal(t, "R33", env[0])
	assert.Equal(t, "R42", env[9])

	// returned tables are copies
	branches[0].Label = "changed"
	assert.Equal(t, "Open Thinking Jobs", BranchTable()[0].Label)
}

func TestMajorityValue(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"empty", nil, 0},
		{"single one", []int{1}, 0},
		{"two ones", []int{1, 1}, 1},
		{"two of three", []int{1, 0, 1}, 1},
		{"one of three", []int{0, 1, 0}, 0},
		{"non-one values ignored", []int{2, 3, 1}, 0},
		{"many ones", []int{1, 1, 1, 1, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MajorityValue(tt.values))

			reversed := make([]int, len(tt.values))
			for i, v := range tt.values {
				reversed[len(tt.values)-1-i] = v
			}
			assert.Equal(t, tt.want, MajorityValue(reversed), "order invariant")
		})
	}
}

func TestPartitionAnswers(t *testing.T) {
	branch, env, anomalies := PartitionAnswers(models.AnswerSet{
		"10001": 1,
		"40001": 0,
		"50001": 1,
		"60001": 1,
		"abc":   1,
	})

	assert.Equal(t, models.AnswerSet{"10001": 1, "40001": 0}, branch)
	assert.Equal(t, models.AnswerSet{"50001": 1}, env)
	assert.Equal(t, []Anomaly{
		{QuestionID: "60001", Kind: AnomalyUnroutable},
		{QuestionID: "abc", Kind: AnomalyUnroutable},
	}, anomalies)
}

func TestScoreBranches(t *testing.T) {
	m := testMapping(t)

	t.Run("majority under one title", func(t *testing.T) {
		out := ScoreBranches(models.AnswerSet{
			"10001": 1, "10002": 1, "10003": 1, "10004": 1, "10005": 1,
		}, m)

		require.Len(t, out, 16)
		assert.Equal(t, "Open Thinking Jobs", out[0].JobType)
		assert.Equal(t, []int{1, 0, 0, 0, 0}, out[0].ChosenCompetencies)
	})

	t.Run("title order and truncation", func(t *testing.T) {
		out := ScoreBranches(models.AnswerSet{
			"10006": 1, "10007": 1, // Curiosity, second title
			"10011": 1, // Originality, sixth title, dropped
			"20001": 1, "20002": 0, "20003": 1,
		}, m)

		assert.Equal(t, []int{0, 1, 0, 0, 0}, out[0].ChosenCompetencies)
		assert.Equal(t, []int{0, 0, 0, 0, 0}, out[1].ChosenCompetencies, "one vote per title is not a majority")
	})

	t.Run("shape holds for empty answers", func(t *testing.T) {
		out := ScoreBranches(models.AnswerSet{}, m)
		require.Len(t, out, 16)
		for i, b := range out {
			assert.Equal(t, BranchTable()[i].Label, b.JobType)
			require.Len(t, b.ChosenCompetencies, CompetenciesPerBranch)
			for _, v := range b.ChosenCompetencies {
				assert.Contains(t, []int{0, 1}, v)
			}
		}
	})
}

func TestScoreEnvironment(t *testing.T) {
	m := testMapping(t)

	out := ScoreEnvironment(models.AnswerSet{
		"50001": 1, "50003": 1, // Remote + Office pooled under R33
		"50004": 1, "50005": 0,
	}, m)

	require.Len(t, out, 10)
	for i, slot := range out {
		assert.Equal(t, i+1, slot.Question)
	}
	assert.Equal(t, 1, out[0].SelectedOption)
	assert.Equal(t, 0, out[1].SelectedOption)
}

func TestEngineScore(t *testing.T) {
	m := testMapping(t)
	engine := NewEngine(logger.NewTestLogger(t))

	answers := models.AnswerSet{
		"10001": 1, "10002": 1,
		"50001": 1, "50002": 1,
		"19999": 1, // unmapped
		"90001": 1, // unroutable
	}
	enrollment := &models.ExamEnrollment{
		ExamCode:  "EX-1",
		JobTitle:  strPtr("Engineer"),
		Industry:  strPtr("Energy"),
		Seniority: nil,
	}

	first, diag := engine.Score(answers, enrollment, m)
	second, _ := engine.Score(answers, enrollment, m)

	assert.Equal(t, first, second, "scoring is idempotent")
	assert.Equal(t, "Engineer", *first.JobTitle)
	assert.Equal(t, "Energy", *first.Industry)
	assert.Nil(t, first.Seniority)
	assert.Equal(t, []int{1, 0, 0, 0, 0}, first.SelectedBranches[0].ChosenCompetencies)
	assert.Equal(t, 1, first.EnvironmentStatus[0].SelectedOption)

	assert.Equal(t, 3, diag.BranchAnswers)
	assert.Equal(t, 2, diag.EnvironmentAnswers)
	assert.ElementsMatch(t, []Anomaly{
		{QuestionID: "90001", Kind: AnomalyUnroutable},
		{QuestionID: "19999", Kind: AnomalyUnmapped},
	}, diag.Anomalies)
}

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		want    models.AnswerSet
		wantErr bool
	}{
		{name: "object of numbers", blob: `{"10001": 1, "10002": 0}`, want: models.AnswerSet{"10001": 1, "10002": 0}},
		{name: "strings and bools", blob: `{"10001": "1", "10002": true, "10003": false, "10004": "x"}`,
			want: models.AnswerSet{"10001": 1, "10002": 1, "10003": 0, "10004": 0}},
		{name: "nested values count as zero", blob: `{"10001": {"a": 1}, "10002": null}`,
			want: models.AnswerSet{"10001": 0, "10002": 0}},
		{name: "array uses indexes", blob: `[1, 0]`, want: models.AnswerSet{"0": 1, "1": 0}},
		{name: "empty blob", blob: ``, wantErr: true},
		{name: "null", blob: `null`, wantErr: true},
		{name: "scalar", blob: `42`, wantErr: true},
		{name: "empty object", blob: `{}`, wantErr: true},
		{name: "malformed", blob: `{"10001":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswers([]byte(tt.blob))
			if tt.wantErr {
				stdErr, ok := errors.As(err)
				require.True(t, ok)
				assert.Equal(t, errors.ErrCodeInvalidExamData, stdErr.Code)
				assert.Equal(t, "Invalid exam data", stdErr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The shipped reference file must cover every branch with five titles and every environment
// reference.
func TestShippedMapping(t *testing.T) {
	m, err := mapping.Load("../../../../configs/AcademicFinderAlgorithm.csv")
	require.NoError(t, err)

	for _, b := range BranchTable() {
		assert.Len(t, m.Titles(b.Reference), CompetenciesPerBranch, b.Reference)
	}

	envAnswers := models.AnswerSet{}
	for _, ref := range EnvironmentTable() {
		found := 0
		for id := 50000; id < 51000 && found < 2; id++ {
			key := strconv.Itoa(id)
			if entry, ok := m.Lookup(key); ok && entry.Reference == ref {
				envAnswers[key] = 1
				found++
			}
		}
		require.Equal(t, 2, found, ref)
	}
	for _, slot := range ScoreEnvironment(envAnswers, m) {
		assert.Equal(t, 1, slot.SelectedOption, "question %d", slot.Question)
	}
}
