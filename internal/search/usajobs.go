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

const usajobsBase = "https://data.usajobs.gov"

// USAJobs 查询美国政府职位库，只在职位类型下使用，优先退伍军人招聘通道。
type USAJobs struct {
	baseURL string
	apiKey  string
	email   string
	client  *http.Client
}

// NewUSAJobs 创建 USAJOBS 源；email 作为 User-Agent 是接口要求。
func NewUSAJobs(baseURL, apiKey, email string, client *http.Client) *USAJobs {
	if baseURL == "" {
		baseURL = usajobsBase
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &USAJobs{baseURL: strings.TrimSuffix(baseURL, "/"), apiKey: apiKey, email: email, client: client}
}

func (u *USAJobs) Name() string { return "usajobs" }

func (u *USAJobs) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	if strings.TrimSpace(u.apiKey) == "" || strings.TrimSpace(u.email) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("Keyword", q.Keywords())
	params.Set("ResultsPerPage", strconv.Itoa(q.Max))
	params.Set("HiringPath", "vet")
	if loc := strings.TrimSpace(q.Location); loc != "" && !strings.EqualFold(loc, "United States") {
		params.Set("LocationName", loc)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/api/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization-Key", u.apiKey)
	req.Header.Set("User-Agent", u.email)
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usajobs get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usajobs status %d", resp.StatusCode)
	}

	var body usajobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode usajobs: %w", err)
	}

	out := make([]model.SearchResult, 0, len(body.SearchResult.Items))
	for _, item := range body.SearchResult.Items {
		d := item.Descriptor
		snippet := joinNonEmpty(" - ", d.OrganizationName, d.LocationDisplay, d.UserArea.Details.JobSummary)
		out = append(out, model.SearchResult{URL: d.PositionURI, Title: d.PositionTitle, Snippet: snippet, SourceDomain: "usajobs.gov"})
	}
	return out, nil
}

type usajobsResponse struct {
	SearchResult struct {
		Items []struct {
			Descriptor struct {
				PositionTitle    string `json:"PositionTitle"`
				PositionURI      string `json:"PositionURI"`
				OrganizationName string `json:"OrganizationName"`
				LocationDisplay  string `json:"PositionLocationDisplay"`
				UserArea         struct {
					Details struct {
						JobSummary string `json:"JobSummary"`
					} `json:"Details"`
				} `json:"UserArea"`
			} `json:"MatchedObjectDescriptor"`
		} `json:"SearchResultItems"`
	} `json:"SearchResult"`
}
