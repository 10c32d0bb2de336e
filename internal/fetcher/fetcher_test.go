package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchReturnsVisibleText(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Ignored</title><style>.x{}</style></head><body>
<nav>Jobs</nav><h1>Security Officer</h1><script>var tracking = 1;</script>
<p>Acme Corp is hiring.</p><p>Salary: $50,000 - $60,000</p><noscript>enable js</noscript></body></html>`
	hits := &atomic.Int32{}
	rt := newStubRoundTripper(map[string]stubResponse{"https://jobs.example.com/1": {status: 200, body: page}}, hits)
	f := New(Config{}, &http.Client{Transport: rt}, nil)

	text, err := f.Fetch(context.Background(), "https://jobs.example.com/1")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	want := "Jobs Security Officer Acme Corp is hiring. Salary: $50,000 - $60,000"
	if text != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", text, want)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 hit, got %d", hits.Load())
	}
}

func TestFetchTruncatesByRunes(t *testing.T) {
	t.Parallel()

	body := "<p>" + strings.Repeat("é", 50) + "</p>"
	rt := newStubRoundTripper(map[string]stubResponse{"https://a.example.com/": {status: 200, body: body}}, nil)
	f := New(Config{MaxChars: 10}, &http.Client{Transport: rt}, nil)

	text, err := f.Fetch(context.Background(), "https://a.example.com/")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if text != strings.Repeat("é", 10) {
		t.Fatalf("expected 10 runes, got %q", text)
	}
}

func TestFetchDetectsBlockedPages(t *testing.T) {
	t.Parallel()

	rt := newStubRoundTripper(map[string]stubResponse{
		"https://cf.example.com/job":       {status: 200, body: `<html><head><title>Just a moment...</title></head><body><div id="challenge-platform"></div></body></html>`},
		"https://www.linkedin.com/jobs/1":  {status: 999, body: ""},
		"https://captcha.example.com/page": {status: 200, body: `<div class="g-recaptcha"></div>`},
		"https://busy.example.com/page":    {status: 429, body: "slow down"},
	}, nil)
	f := New(Config{}, &http.Client{Transport: rt}, nil)

	for _, u := range []string{"https://cf.example.com/job", "https://www.linkedin.com/jobs/1", "https://captcha.example.com/page", "https://busy.example.com/page"} {
		_, err := f.Fetch(context.Background(), u)
		if !errors.Is(err, ErrBlocked) {
			t.Fatalf("expected ErrBlocked for %s, got %v", u, err)
		}
	}
}

func TestFetchFailures(t *testing.T) {
	t.Parallel()

	rt := newStubRoundTripper(map[string]stubResponse{
		"https://err.example.com/500":   {status: 500, body: "oops"},
		"https://empty.example.com/":    {status: 200, body: "<html><body><script>x()</script></body></html>"},
		"https://down.example.com/page": {err: errors.New("connection refused")},
	}, nil)
	f := New(Config{}, &http.Client{Transport: rt}, nil)

	for _, u := range []string{"https://err.example.com/500", "https://empty.example.com/", "https://down.example.com/page", "ftp://files.example.com/x", "::bad"} {
		_, err := f.Fetch(context.Background(), u)
		if err == nil {
			t.Fatalf("expected error for %s", u)
		}
		if errors.Is(err, ErrBlocked) {
			t.Fatalf("did not expect ErrBlocked for %s: %v", u, err)
		}
	}
}

func TestFetchLimitsInFlightPerHost(t *testing.T) {
	t.Parallel()

	rt := &concurrencyRoundTripper{delay: 20 * time.Millisecond}
	f := New(Config{HostInFlight: 1}, &http.Client{Transport: rt}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), "https://same.example.com/p"); err != nil {
				t.Errorf("Fetch error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := rt.maxActive.Load(); got != 1 {
		t.Fatalf("expected at most 1 in-flight request per host, got %d", got)
	}
}

func TestFetchSpacesRequestsToSameHost(t *testing.T) {
	t.Parallel()

	rt := &concurrencyRoundTripper{}
	f := New(Config{HostInterval: 40 * time.Millisecond}, &http.Client{Transport: rt}, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), "https://polite.example.com/p"); err != nil {
			t.Fatalf("Fetch error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected spacing between requests, took %v", elapsed)
	}
}

func TestFetchHonoursCancellation(t *testing.T) {
	t.Parallel()

	rt := &concurrencyRoundTripper{delay: time.Second}
	f := New(Config{}, &http.Client{Transport: rt}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, "https://slow.example.com/"); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

type stubResponse struct {
	status int
	body   string
	err    error
}

type stubRoundTripper struct {
	responses map[string]stubResponse
	hits      *atomic.Int32
	mu        sync.Mutex
}

func newStubRoundTripper(responses map[string]stubResponse, hits *atomic.Int32) *stubRoundTripper {
	return &stubRoundTripper{responses: responses, hits: hits}
}

func (s *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	resp, ok := s.responses[req.URL.String()]
	s.mu.Unlock()
	if s.hits != nil {
		s.hits.Add(1)
	}
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("")), Header: make(http.Header), Request: req}, nil
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &http.Response{StatusCode: resp.status, Body: io.NopCloser(strings.NewReader(resp.body)), Header: make(http.Header), Request: req}, nil
}

type concurrencyRoundTripper struct {
	delay     time.Duration
	active    atomic.Int32
	maxActive atomic.Int32
}

func (c *concurrencyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		old := c.maxActive.Load()
		if n <= old || c.maxActive.CompareAndSwap(old, n) {
			break
		}
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("<p>ok</p>")), Header: make(http.Header), Request: req}, nil
}
