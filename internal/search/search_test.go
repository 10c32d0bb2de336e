package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"next-mission/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name    string
	results []model.SearchResult
	err     error
	calls   int
	last    Query
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(_ context.Context, q Query) ([]model.SearchResult, error) {
	s.calls++
	s.last = q
	return s.results, s.err
}

func TestQueryText(t *testing.T) {
	t.Parallel()

	q := Query{Terms: []string{"Infantryman", " ", "Security", "Logistics", "Driver"}, Suffix: "veteran mentor", Site: "linkedin.com/in"}
	assert.Equal(t, "Infantryman Security Logistics veteran mentor site:linkedin.com/in", q.Text())
	assert.Equal(t, "Infantryman Security Logistics", q.Keywords())

	q = Query{Terms: []string{"Medic"}, Location: "United States"}
	assert.Equal(t, "Medic United States", q.Text())
}

func TestClientConcatenatesAndDegrades(t *testing.T) {
	t.Parallel()

	broken := &stubSource{name: "broken", err: errors.New("boom")}
	first := &stubSource{name: "first", results: []model.SearchResult{
		{URL: "https://www.linkedin.com/jobs/view/1", Title: "<b>Security</b> Officer", Snippet: "Guard &amp; patrol"},
		{URL: "  ", Title: "no link"},
	}}
	second := &stubSource{name: "second", results: []model.SearchResult{
		{URL: "https://www.linkedin.com/jobs/view/1", Title: "duplicate kept", SourceDomain: "custom"},
	}}

	c := NewClient(Config{}, []Source{broken, first, second}, nil)
	got := c.Search(context.Background(), Query{Terms: []string{"Security"}})

	require.Len(t, got, 2)
	assert.Equal(t, "Security Officer", got[0].Title)
	assert.Equal(t, "Guard & patrol", got[0].Snippet)
	assert.Equal(t, "linkedin.com", got[0].SourceDomain)
	assert.Equal(t, "custom", got[1].SourceDomain)
	assert.Equal(t, 10, first.last.Max)
}

func TestClientCapsResultsPerSource(t *testing.T) {
	t.Parallel()

	results := make([]model.SearchResult, 40)
	for i := range results {
		results[i] = model.SearchResult{URL: "https://example.com/" + string(rune('a'+i%26)), Title: "t"}
	}
	src := &stubSource{name: "many", results: results}
	got := NewClient(Config{}, []Source{src}, nil).Search(context.Background(), Query{Max: 100})

	assert.Len(t, got, maxResultsCap)
	assert.Equal(t, maxResultsCap, src.last.Max)
}

func TestClientWithNoSourcesReturnsEmptyList(t *testing.T) {
	t.Parallel()

	got := NewClient(Config{}, nil, nil).Search(context.Background(), Query{Terms: []string{"x"}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSerpAPIOrganicResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "Medic site:linkedin.com/jobs", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("num"))
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"organic_results":[{"title":"Medic","link":"https://www.linkedin.com/jobs/view/9","snippet":"Care"}]}`))
	}))
	defer srv.Close()

	got, err := NewSerpAPI(srv.URL, "key", "", srv.Client()).Search(context.Background(), Query{Terms: []string{"Medic"}, Site: "linkedin.com/jobs", Max: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/9", got[0].URL)
}

func TestSerpAPIGoogleJobsVariant(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google_jobs", r.URL.Query().Get("engine"))
		assert.Equal(t, "Driver", r.URL.Query().Get("q"))
		assert.Equal(t, "Texas", r.URL.Query().Get("location"))
		_, _ = w.Write([]byte(`{"jobs_results":[{"title":"CDL Driver","company_name":"Acme","location":"Austin, TX","description":"Haul","share_link":"https://g.co/x","apply_options":[{"link":"https://acme.com/jobs/1"}]}]}`))
	}))
	defer srv.Close()

	got, err := NewSerpAPI(srv.URL, "key", "google_jobs", srv.Client()).Search(context.Background(), Query{Terms: []string{"Driver"}, Site: "linkedin.com/jobs", Location: "Texas", Max: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://acme.com/jobs/1", got[0].URL)
	assert.Equal(t, "Acme - Austin, TX - Haul", got[0].Snippet)
}

func TestSerpAPIFailsClosed(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"error":"Invalid API key"}`))
	}))
	defer srv.Close()

	got, err := NewSerpAPI(srv.URL, "", "", srv.Client()).Search(context.Background(), Query{Terms: []string{"x"}})
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), hits.Load(), "no request without credentials")

	_, err = NewSerpAPI(srv.URL, "bad", "", srv.Client()).Search(context.Background(), Query{Terms: []string{"x"}})
	assert.ErrorContains(t, err, "Invalid API key")
}

func TestUSAJobs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("Authorization-Key"))
		assert.Equal(t, "me@example.com", r.Header.Get("User-Agent"))
		assert.Equal(t, "Logistics", r.URL.Query().Get("Keyword"))
		assert.Equal(t, "vet", r.URL.Query().Get("HiringPath"))
		assert.Empty(t, r.URL.Query().Get("LocationName"))
		_, _ = w.Write([]byte(`{"SearchResult":{"SearchResultItems":[{"MatchedObjectDescriptor":{"PositionTitle":"Supply Technician","PositionURI":"https://www.usajobs.gov/job/1","OrganizationName":"VA","PositionLocationDisplay":"Denver, CO","UserArea":{"Details":{"JobSummary":"Manage supply"}}}}]}}`))
	}))
	defer srv.Close()

	got, err := NewUSAJobs(srv.URL, "k", "me@example.com", srv.Client()).Search(context.Background(), Query{Terms: []string{"Logistics"}, Location: "United States", Max: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Supply Technician", got[0].Title)
	assert.Equal(t, "VA - Denver, CO - Manage supply", got[0].Snippet)
	assert.Equal(t, "usajobs.gov", got[0].SourceDomain)

	got, err = NewUSAJobs(srv.URL, "", "", srv.Client()).Search(context.Background(), Query{})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestDuckDuckGoParsesResults(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<div class="result results_links result--ad"><a class="result__a" href="https://ads.example.com">Ad</a></div>
<div class="result results_links"><h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.va.gov%2Fevents%2F1&rut=abc">VA Job Fair</a></h2>
<a class="result__snippet">Meet employers hiring veterans.</a></div>
<div class="result results_links"><a class="result__a" href="/relative">Broken</a></div>
<div class="result results_links"><a class="result__a" href="https://example.org/benefits">Benefits Expo</a><a class="result__snippet">Free entry</a></div>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "job fair veteran events", r.PostForm.Get("q"))
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	got, err := NewDuckDuckGo(srv.URL, "test-agent", srv.Client()).Search(context.Background(), Query{Terms: []string{"job fair"}, Suffix: "veteran events", Max: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://www.va.gov/events/1", got[0].URL)
	assert.Equal(t, "Meet employers hiring veterans.", got[0].Snippet)
	assert.Equal(t, "Benefits Expo", got[1].Title)
}
