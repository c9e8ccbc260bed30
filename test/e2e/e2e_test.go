// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exam-workers/internal/api"
	"exam-workers/internal/common/config"
	"exam-workers/internal/common/database"
	"exam-workers/internal/common/logger"
	"exam-workers/internal/examsource"
	"exam-workers/internal/jobstore"
	"exam-workers/internal/models"
	"exam-workers/internal/queue"
	getrecommendations "exam-workers/internal/workers/exam/get-recommendations"
	processexam "exam-workers/internal/workers/exam/process-exam"
	"exam-workers/pkg/mapping"
)

// disabledRecommender behaves like the recommendation client with the API switched off.
type disabledRecommender struct{}

func (disabledRecommender) GetRecommendations(context.Context, *models.ExamScoreResult, string) (json.RawMessage, error) {
	return nil, getrecommendations.ErrUnavailable
}

// stack is the API, queue and worker wired against real postgres and redis.
type stack struct {
	server *httptest.Server
	pg     *database.PostgresClient
}

func TestMain(m *testing.M) {
	if os.Getenv("E2E_TESTS") == "" {
		// needs postgres and redis from configs/config.yaml
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func setup(t *testing.T) *stack {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg, err := config.Load()
	require.NoError(t, err)
	log := logger.NewTestLogger(t)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	require.NoError(t, pg.Ping(ctx), "postgres must be reachable")
	t.Cleanup(func() { pg.Close() })

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	require.NoError(t, rdb.Ping(ctx), "redis must be reachable")
	t.Cleanup(func() { rdb.Close() })

	applyMigrations(t, pg)

	prefix := "e2e:" + uuid.NewString()[:8]
	q := queue.NewRedisQueue(rdb.Client, queue.RedisConfig{
		PendingKey:    prefix + ":pending",
		ProcessingKey: prefix + ":processing",
		Workers:       2,
		PollTimeout:   500 * time.Millisecond,
	}, log)
	t.Cleanup(func() { rdb.Client.Del(context.Background(), prefix+":pending", prefix+":processing") })

	store := jobstore.New(pg.DB)
	handler := processexam.NewHandler(&processexam.Config{
		MaxRuntime:    30 * time.Second,
		DefaultLocale: "en",
	}, processexam.Dependencies{
		Store:       store,
		Source:      examsource.NewPostgresSource(pg.DB),
		Mappings:    mapping.NewCached(filepath.Join(projectRoot(t), "configs", "AcademicFinderAlgorithm.csv")),
		Recommender: disabledRecommender{},
	}, log)

	go func() { _ = q.Run(ctx, handler.Process) }()

	srv := api.New(&api.Config{DefaultLocale: "en"}, store, q, []database.Pinger{pg, rdb}, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &stack{server: ts, pg: pg}
}

func TestExamLifecycle(t *testing.T) {
	s := setup(t)
	examCode := "E2E-" + uuid.NewString()[:8]
	insertEnrollment(t, s.pg, examCode, map[string]int{"10001": 1, "10002": 1, "10003": 1, "50001": 1, "50002": 1})

	jobID := submit(t, s, examCode)
	data := waitForTerminal(t, s, jobID)

	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(100), data["progress"])
	assert.NotEmpty(t, data["completed_at"])
	assert.NotContains(t, data, "error_message")

	result := data["result"].(map[string]interface{})
	branches := result["selected_branches"].([]interface{})
	require.Len(t, branches, 16)
	first := branches[0].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(1), float64(0), float64(0), float64(0), float64(0)}, first["chosen_competencies"])
	assert.Len(t, result["environment_status"], 10)
}

func TestExamNotFound(t *testing.T) {
	s := setup(t)
	jobID := submit(t, s, "E2E-MISSING-"+uuid.NewString()[:8])
	data := waitForTerminal(t, s, jobID)

	assert.Equal(t, "failed", data["status"])
	assert.Equal(t, "Exam not found", data["error_message"])
	assert.NotContains(t, data, "result")
}

func TestReady(t *testing.T) {
	s := setup(t)
	resp, err := http.Get(s.server.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func submit(t *testing.T, s *stack, examCode string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"exam_code": examCode})
	resp, err := http.Post(s.server.URL+"/api/exam-results/process", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		Data api.ProcessData `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Data.JobID)
	return out.Data.JobID
}

func waitForTerminal(t *testing.T, s *stack, jobID string) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	require.Eventually(t, func() bool {
		resp, err := http.Get(s.server.URL + "/api/exam-results/status/" + jobID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var out struct {
			Data map[string]interface{} `json:"data"`
		}
		if json.NewDecoder(resp.Body).Decode(&out) != nil {
			return false
		}
		data = out.Data
		status, _ := data["status"].(string)
		return status == "completed" || status == "failed"
	}, 30*time.Second, 200*time.Millisecond)
	return data
}

func applyMigrations(t *testing.T, pg *database.PostgresClient) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(projectRoot(t), "migrations", "*.sql"))
	require.NoError(t, err)
	for _, f := range files {
		sql, err := os.ReadFile(f)
		require.NoError(t, err)
		_, err = pg.DB.Exec(string(sql))
		require.NoError(t, err, f)
	}
}

func insertEnrollment(t *testing.T, pg *database.PostgresClient, examCode string, answers map[string]int) {
	t.Helper()
	blob, _ := json.Marshal(answers)
	_, err := pg.DB.Exec(
		`INSERT INTO exam_enrollments (exam_code, answers, job_title) VALUES ($1, $2, $3)`,
		examCode, string(blob), "Engineer")
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pg.DB.Exec(`DELETE FROM exam_enrollments WHERE exam_code = $1`, examCode) })
}

func projectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}
