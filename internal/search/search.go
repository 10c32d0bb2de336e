package search

import (
	"context"
	"html"
	"net/url"
	"strings"
	"time"

	"next-mission/internal/model"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Query 描述一次搜索：取前 3 个关键词拼接，可选站点限制与地点。
type Query struct {
	Terms    []string
	Site     string
	Suffix   string
	Location string
	Max      int
}

// Text 返回发给通用搜索引擎的查询串。
func (q Query) Text() string {
	parts := q.keywordParts()
	if s := strings.TrimSpace(q.Suffix); s != "" {
		parts = append(parts, s)
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		parts = append(parts, loc)
	}
	if site := strings.TrimSpace(q.Site); site != "" {
		parts = append(parts, "site:"+site)
	}
	return strings.Join(parts, " ")
}

// Keywords 只返回关键词部分，供自带站点范围的职位源使用。
func (q Query) Keywords() string {
	return strings.Join(q.keywordParts(), " ")
}

func (q Query) keywordParts() []string {
	parts := make([]string, 0, 3)
	for _, t := range q.Terms {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
		if len(parts) == 3 {
			break
		}
	}
	return parts
}

// Source 是一个外部搜索源。缺少凭证时返回 (nil, nil)。
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]model.SearchResult, error)
}

// Config 定义搜索源凭证与限制。
type Config struct {
	SerpAPIKey    string        `yaml:"serpapi_key" json:"serpapi_key"`
	SerpAPIEngine string        `yaml:"serpapi_engine" json:"serpapi_engine"`
	USAJobsKey    string        `yaml:"usajobs_key" json:"usajobs_key"`
	USAJobsEmail  string        `yaml:"usajobs_email" json:"usajobs_email"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxResults    int           `yaml:"max_results" json:"max_results"`
}

const maxResultsCap = 25

// Client 依次查询多个源并拼接结果，不做跨源去重；任何失败都降级为空结果。
type Client struct {
	sources []Source
	timeout time.Duration
	max     int
	logger  *zap.Logger
}

// NewClient 创建多源搜索客户端。
func NewClient(cfg Config, sources []Source, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{sources: sources, timeout: cfg.Timeout, max: cfg.MaxResults, logger: logger}
}

// Search 从不返回错误。
func (c *Client) Search(ctx context.Context, q Query) []model.SearchResult {
	if q.Max <= 0 {
		q.Max = c.max
	}
	if q.Max > maxResultsCap {
		q.Max = maxResultsCap
	}

	out := make([]model.SearchResult, 0)
	for _, src := range c.sources {
		if ctx.Err() != nil {
			break
		}
		results := c.searchOne(ctx, src, q)
		out = append(out, results...)
	}
	return out
}

func (c *Client) searchOne(ctx context.Context, src Source, q Query) []model.SearchResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results, err := src.Search(ctx, q)
	if err != nil {
		c.logger.Warn("search source failed", zap.String("source", src.Name()), zap.Error(err))
		return nil
	}
	cleaned := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		r.URL = strings.TrimSpace(r.URL)
		if r.URL == "" {
			continue
		}
		r.Title = cleanText(r.Title)
		r.Snippet = cleanText(r.Snippet)
		if r.SourceDomain == "" {
			r.SourceDomain = domainOf(r.URL)
		}
		cleaned = append(cleaned, r)
		if len(cleaned) == q.Max {
			break
		}
	}
	c.logger.Info("search source done", zap.String("source", src.Name()), zap.String("query", q.Text()), zap.Int("results", len(cleaned)))
	return cleaned
}

var textPolicy = bluemonday.StrictPolicy()

// cleanText 去掉摘要中的 HTML 标签与实体，合并空白。
func cleanText(s string) string {
	s = textPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
