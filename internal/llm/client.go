package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Client 是 LLM 服务的统一接口，返回可能不是合法 JSON 的原始文本。
// 超时由调用方通过 ctx 控制。
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config 定义 LLM 配置。Provider 为 openai（任意 OpenAI 兼容端点，如 Groq、DeepSeek）或 gemini。
type Config struct {
	Provider    string  `yaml:"provider" json:"provider"`
	APIBase     string  `yaml:"api_base" json:"api_base"`
	APIKey      string  `yaml:"api_key" json:"api_key"`
	Model       string  `yaml:"model" json:"model"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// New 按 Provider 创建客户端。
func New(ctx context.Context, cfg Config, httpClient *http.Client) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai", "groq", "deepseek":
		return NewChatClient(cfg, httpClient), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
