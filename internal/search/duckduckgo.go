package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"next-mission/internal/model"

	"github.com/PuerkitoBio/goquery"
)

const duckduckgoBase = "https://html.duckduckgo.com"

// DuckDuckGo 解析 DuckDuckGo HTML 精简版结果页，无需凭证。
type DuckDuckGo struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewDuckDuckGo 创建 DuckDuckGo 源。
func NewDuckDuckGo(baseURL, userAgent string, client *http.Client) *DuckDuckGo {
	if baseURL == "" {
		baseURL = duckduckgoBase
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DuckDuckGo{baseURL: strings.TrimSuffix(baseURL, "/"), userAgent: userAgent, client: client}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	form := url.Values{}
	form.Set("q", q.Text())
	form.Set("kl", "us-en")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/html/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", d.baseURL+"/")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}

	out := make([]model.SearchResult, 0)
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if len(out) >= q.Max || s.HasClass("result--ad") {
			return
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if !ok || title == "" {
			return
		}
		target := unwrapRedirect(href)
		if target == "" {
			return
		}
		out = append(out, model.SearchResult{
			URL:     target,
			Title:   title,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
	})
	return out, nil
}

// unwrapRedirect 还原 //duckduckgo.com/l/?uddg=<url> 形式的跳转链接。
func unwrapRedirect(href string) string {
	if strings.Contains(href, "uddg=") {
		if u, err := url.Parse(href); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				return target
			}
		}
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}
