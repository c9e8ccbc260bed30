package examsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"exam-workers/internal/common/errors"
	"exam-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchSource reads enrollments indexed one document per exam.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSource(client *elasticsearch.Client, index string) *ElasticsearchSource {
	return &ElasticsearchSource{client: client, index: index}
}

type enrollmentDoc struct {
	ExamCode  string          `json:"exam_code"`
	Answers   json.RawMessage `json:"answers"`
	JobTitle  *string         `json:"job_title"`
	Industry  *string         `json:"industry"`
	Seniority *string         `json:"seniority"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source enrollmentDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchSource) GetEnrollment(ctx context.Context, examCode string) (*models.ExamEnrollment, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"exam_code": examCode},
		},
	})
	size := 1

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(s.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, notFound(examCode)
	}
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(s.index, fmt.Errorf("search returned %s", res.Status()))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, errors.NewSearchQueryFailedError(s.index, fmt.Errorf("decode response: %w", err))
	}
	if len(sr.Hits.Hits) == 0 {
		return nil, notFound(examCode)
	}

	doc := sr.Hits.Hits[0].Source
	return &models.ExamEnrollment{
		ExamCode:  doc.ExamCode,
		Answers:   unquote(doc.Answers),
		JobTitle:  doc.JobTitle,
		Industry:  doc.Industry,
		Seniority: doc.Seniority,
	}, nil
}

// unquote unwraps answers indexed as a JSON-encoded string.
func unquote(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return raw
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return raw
	}
	return json.RawMessage(s)
}
