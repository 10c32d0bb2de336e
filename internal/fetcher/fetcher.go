package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrBlocked 表示页面返回了反爬挑战，视为抓取失败且不重试。
var ErrBlocked = errors.New("blocked by anti-bot challenge")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Config 定义页面抓取配置。
type Config struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxChars     int           `yaml:"max_chars" json:"max_chars"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	// HostInterval 是同一站点两次请求之间的最小间隔。
	HostInterval time.Duration `yaml:"host_interval" json:"host_interval"`
	// HostInFlight 是同一站点同时进行的请求上限。
	HostInFlight int `yaml:"host_in_flight" json:"host_in_flight"`
}

// PageFetcher 抓取候选页面并返回可见文本。
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Fetcher 基于 net/http 实现 PageFetcher，按站点限速。
type Fetcher struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	hosts map[string]*hostGate
}

type hostGate struct {
	limiter *rate.Limiter
	slots   *semaphore.Weighted
}

// New 创建抓取器。
func New(cfg Config, client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 20000
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.HostInterval < 0 {
		cfg.HostInterval = 0
	}
	if cfg.HostInFlight <= 0 {
		cfg.HostInFlight = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, cfg: cfg, logger: logger, hosts: make(map[string]*hostGate)}
}

// Fetch 抓取页面并返回截断后的可见文本。反爬页面返回 ErrBlocked。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}

	gate := f.gate(strings.ToLower(u.Hostname()))
	if err := gate.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait host slot: %w", err)
	}
	defer gate.slots.Release(1)
	if err := gate.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait host rate: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case isBlockedStatus(resp.StatusCode):
		return "", fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if marker, blocked := detectChallenge(body); blocked {
		return "", fmt.Errorf("%w: marker %q", ErrBlocked, marker)
	}

	text := Truncate(VisibleText(string(body)), f.cfg.MaxChars)
	if text == "" {
		return "", fmt.Errorf("page has no visible text")
	}
	f.logger.Debug("page fetched", zap.String("url", rawURL), zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

func (f *Fetcher) gate(host string) *hostGate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.hosts[host]
	if !ok {
		limit := rate.Inf
		if f.cfg.HostInterval > 0 {
			limit = rate.Every(f.cfg.HostInterval)
		}
		g = &hostGate{
			limiter: rate.NewLimiter(limit, 1),
			slots:   semaphore.NewWeighted(int64(f.cfg.HostInFlight)),
		}
		f.hosts[host] = g
	}
	return g
}

// 999 是 LinkedIn 对疑似爬虫的专用状态码。
func isBlockedStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests || code == 999
}

// 已知的反爬挑战页特征，按小写匹配。
var challengeMarkers = []string{
	"cf-browser-verification",
	"challenge-platform",
	"cf-chl-",
	"<title>just a moment...</title>",
	"attention required! | cloudflare",
	"g-recaptcha",
	"h-captcha",
	"px-captcha",
	"captcha-delivery.com",
	"are you a robot",
	"verify you are human",
	"unusual traffic from your computer network",
	"authwall",
	"<title>access denied</title>",
	"please enable js and disable any ad blocker",
}

func detectChallenge(body []byte) (string, bool) {
	lower := strings.ToLower(string(body))
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	return "", false
}

// 不包含可见文本的元素。
var skipElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "svg": {}, "template": {}, "head": {}, "iframe": {}, "canvas": {},
}

// 块级元素前后补空白，避免相邻段落粘连。
var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "li": {}, "ul": {}, "ol": {}, "tr": {}, "td": {}, "th": {}, "table": {},
	"section": {}, "article": {}, "header": {}, "footer": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

// VisibleText 去掉 HTML 标签与不可见元素，合并空白。
func VisibleText(htmlText string) string {
	node, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return strings.Join(strings.Fields(htmlText), " ")
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skipElements[n.Data]; skip {
				return
			}
			if _, block := blockElements[n.Data]; block {
				sb.WriteByte(' ')
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			if _, block := blockElements[n.Data]; block {
				sb.WriteByte(' ')
			}
		}
	}
	walk(node)

	return strings.Join(strings.Fields(sb.String()), " ")
}

// Truncate 按字符（rune）截断文本。
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars])
}
