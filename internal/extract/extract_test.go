package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"next-mission/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaDir = "../../schemas"

type stubLLM struct {
	response string
	err      error
	lastUser string
}

func (s *stubLLM) Complete(_ context.Context, _, user string) (string, error) {
	s.lastUser = user
	return s.response, s.err
}

func loadJobs(t *testing.T) *Schema {
	t.Helper()
	schema, err := LoadSchema(schemaDir, model.KindJobs)
	require.NoError(t, err)
	return schema
}

func TestLoadSchemaKeepsFieldOrder(t *testing.T) {
	t.Parallel()

	schema := loadJobs(t)
	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"company", "title", "location", "tags", "salary", "employment_type", "work_mode", "posted_date", "applicants", "description", "url"}, names)
	assert.Equal(t, "string or null", schema.Fields[0].Type)

	for _, kind := range model.Kinds() {
		_, err := LoadSchema(schemaDir, kind)
		assert.NoError(t, err, kind)
	}
}

func TestLoadSchemaErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := LoadSchema(dir, model.KindMentors)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, filepath.Join(dir, "mentors.schema.json"), schemaErr.Path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.schema.json"), []byte(`{"type": "object", "properties": `), 0o644))
	_, err = LoadSchema(dir, model.KindEvents)
	assert.True(t, errors.As(err, &schemaErr))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobs.schema.json"), []byte(`{"type": "object", "properties": {}}`), 0o644))
	_, err = LoadSchema(dir, model.KindJobs)
	assert.ErrorContains(t, err, "no properties")
}

func TestExtractParsesEmbeddedObject(t *testing.T) {
	t.Parallel()

	llm := &stubLLM{response: "Here is the listing you asked for:\n" +
		`{"company": "Acme", "title": "Security Officer", "location": "Austin, TX", "tags": ["security"], "salary": {"from": 50000, "to": 60000}, "applicants": 12, "matching_score": 99}` +
		"\nLet me know if you need anything else."}
	x := New(Config{}, llm, nil)

	job := &model.JobListing{}
	outcome, err := x.Extract(context.Background(), loadJobs(t), "page text", job)
	require.NoError(t, err)

	assert.Equal(t, OutcomeParsed, outcome)
	assert.Equal(t, "Acme", *job.Company)
	assert.Equal(t, 60000.0, *job.Salary.To)
	assert.Equal(t, 12, *job.Applicants)
	assert.Nil(t, job.Score, "fields outside the schema are ignored")
	assert.Contains(t, llm.lastUser, "- salary (object or null): Annual salary range in USD")
	assert.True(t, strings.HasSuffix(llm.lastUser, "page text"))
}

func TestExtractFallsBackToDefaultRecord(t *testing.T) {
	t.Parallel()

	x := New(Config{}, &stubLLM{response: "I'm sorry, the page did not contain a job listing."}, nil)

	job := &model.JobListing{}
	outcome, err := x.Extract(context.Background(), loadJobs(t), "text", job)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDefault, outcome)
	assert.Nil(t, job.Company)
	assert.Nil(t, job.Title)
	assert.Nil(t, job.Salary)
	assert.NotNil(t, job.Tags)
	assert.Empty(t, job.Tags)
}

func TestExtractNullsTypeInvalidFields(t *testing.T) {
	t.Parallel()

	x := New(Config{}, &stubLLM{response: `{"company": "Acme", "applicants": "over 100", "tags": "security", "salary": {"from": "50k"}}`}, nil)

	job := &model.JobListing{}
	_, err := x.Extract(context.Background(), loadJobs(t), "text", job)
	require.NoError(t, err)

	assert.Equal(t, "Acme", *job.Company)
	assert.Nil(t, job.Applicants)
	assert.Nil(t, job.Salary)
	assert.Empty(t, job.Tags)
}

func TestDecodeFencedOutputAndRejectsNonObjects(t *testing.T) {
	t.Parallel()

	schema, err := LoadSchema(schemaDir, model.KindEvents)
	require.NoError(t, err)
	x := New(Config{}, nil, nil)

	ev := &model.CommunityEvent{}
	outcome := x.Decode(schema, "```json\n{\"name\": \"Job Fair\", \"tags\": [\"jobs\"]}\n```", ev)
	assert.Equal(t, OutcomeParsed, outcome)
	assert.Equal(t, "Job Fair", *ev.Name)
	assert.Equal(t, []string{"jobs"}, ev.Tags)

	ev = &model.CommunityEvent{}
	assert.Equal(t, OutcomeDefault, x.Decode(schema, `["not", "an", "object"]`, ev))
}

func TestExtractReturnsLLMCallErrors(t *testing.T) {
	t.Parallel()

	x := New(Config{}, &stubLLM{err: errors.New("503")}, nil)
	_, err := x.Extract(context.Background(), loadJobs(t), "text", &model.JobListing{})
	assert.ErrorContains(t, err, "503")
}
