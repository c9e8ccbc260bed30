// Package mapping loads the question reference table (AcademicFinderAlgorithm.csv) that ties
// every exam question to a scoring title and a reference code.
package mapping

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"exam-workers/internal/common/errors"
)

// Entry is the title and reference a question belongs to.
type Entry struct {
	Title     string `json:"title"`
	Reference string `json:"reference"`
}

// ReferenceMapping is the parsed table. It is read-only once returned.
type ReferenceMapping struct {
	questions  map[string]Entry
	titleOrder map[string][]string
}

// Load reads and parses the CSV at path.
func Load(path string) (*ReferenceMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewConfigurationError(errors.ErrCodeCSVFileNotFound,
				"CSV mapping file not found", fmt.Errorf("%s: %w", path, err))
		}
		return nil, errors.NewConfigurationError(errors.ErrCodeCSVFileReadError,
			"Error reading CSV mapping file", fmt.Errorf("%s: %w", path, err))
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, errors.NewConfigurationError(errors.ErrCodeCSVFileReadError,
			"Error reading CSV mapping file", fmt.Errorf("%s: %w", path, err))
	}
	return m, nil
}

// Parse reads rows of question id, title, reference. The first row is a header. Rows missing
// a question id or reference, and "-Title" heading rows, are skipped.
func Parse(r io.Reader) (*ReferenceMapping, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	m := &ReferenceMapping{
		questions:  make(map[string]Entry),
		titleOrder: make(map[string][]string),
	}
	seen := make(map[string]map[string]bool)

	header := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header {
			header = false
			continue
		}

		questionID := column(row, 0)
		title := column(row, 1)
		reference := column(row, 2)

		if questionID == "" || reference == "" {
			continue
		}
		if strings.Contains(reference, "-Title") {
			continue
		}

		m.questions[questionID] = Entry{Title: title, Reference: reference}

		if seen[reference] == nil {
			seen[reference] = make(map[string]bool)
		}
		if !seen[reference][title] {
			seen[reference][title] = true
			m.titleOrder[reference] = append(m.titleOrder[reference], title)
		}
	}

	return m, nil
}

func column(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Lookup returns the entry for questionID.
func (m *ReferenceMapping) Lookup(questionID string) (Entry, bool) {
	e, ok := m.questions[questionID]
	return e, ok
}

// Titles returns the distinct titles of reference in first-seen order. The slice is a copy.
func (m *ReferenceMapping) Titles(reference string) []string {
	titles := m.titleOrder[reference]
	out := make([]string, len(titles))
	copy(out, titles)
	return out
}

// Len is the number of mapped questions.
func (m *ReferenceMapping) Len() int {
	return len(m.questions)
}

// Cached loads the mapping once per process. A failed load is not remembered, so a later call
// succeeds once the file is in place.
type Cached struct {
	path string

	mu sync.Mutex
	m  *ReferenceMapping
}

func NewCached(path string) *Cached {
	return &Cached{path: path}
}

// Get returns the cached mapping, loading it on first use.
func (c *Cached) Get() (*ReferenceMapping, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.m != nil {
		return c.m, nil
	}
	m, err := Load(c.path)
	if err != nil {
		return nil, err
	}
	c.m = m
	return m, nil
}
