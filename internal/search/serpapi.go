package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"next-mission/internal/model"
)

const serpAPIBase = "https://serpapi.com"

// SerpAPI 通过 SerpAPI 查询 Google（engine 可配置，如 google、google_jobs）。
type SerpAPI struct {
	baseURL string
	apiKey  string
	engine  string
	client  *http.Client
}

// NewSerpAPI 创建 SerpAPI 源；baseURL 为空时使用官方地址。
func NewSerpAPI(baseURL, apiKey, engine string, client *http.Client) *SerpAPI {
	if baseURL == "" {
		baseURL = serpAPIBase
	}
	if engine == "" {
		engine = "google"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SerpAPI{baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey, engine: engine, client: client}
}

func (s *SerpAPI) Name() string { return "serpapi:" + s.engine }

func (s *SerpAPI) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("engine", s.engine)
	params.Set("api_key", s.apiKey)
	if s.engine == "google_jobs" {
		// google_jobs 不支持 site: 语法
		params.Set("q", strings.TrimSpace(q.Keywords()+" "+q.Suffix))
		if q.Location != "" {
			params.Set("location", q.Location)
		}
	} else {
		params.Set("q", q.Text())
		params.Set("num", strconv.Itoa(q.Max))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi status %d", resp.StatusCode)
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode serpapi: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", body.Error)
	}

	out := make([]model.SearchResult, 0, len(body.Organic)+len(body.Jobs))
	for _, r := range body.Organic {
		out = append(out, model.SearchResult{URL: r.Link, Title: r.Title, Snippet: r.Snippet})
	}
	for _, j := range body.Jobs {
		link := j.ShareLink
		if len(j.ApplyOptions) > 0 && j.ApplyOptions[0].Link != "" {
			link = j.ApplyOptions[0].Link
		}
		snippet := joinNonEmpty(" - ", j.CompanyName, j.Location, j.Description)
		out = append(out, model.SearchResult{URL: link, Title: j.Title, Snippet: snippet})
	}
	return out, nil
}

type serpResponse struct {
	Error   string        `json:"error"`
	Organic []serpOrganic `json:"organic_results"`
	Jobs    []serpJob     `json:"jobs_results"`
}

type serpOrganic struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serpJob struct {
	Title        string `json:"title"`
	CompanyName  string `json:"company_name"`
	Location     string `json:"location"`
	Description  string `json:"description"`
	ShareLink    string `json:"share_link"`
	ApplyOptions []struct {
		Link string `json:"link"`
	} `json:"apply_options"`
}
