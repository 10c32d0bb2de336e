package query

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"next-mission/internal/codes"
	"next-mission/internal/llm"
	"next-mission/internal/model"

	"go.uber.org/zap"
)

// FallbackTerm 是档案中没有任何职位名称时使用的通用关键词。
const FallbackTerm = "veteran"

// Config 定义关键词生成配置。
type Config struct {
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	MaxTerms int           `yaml:"max_terms" json:"max_terms"`
}

// Keywords 是关键词生成结果；Summary 仅用于展示。
type Keywords struct {
	Summary string   `json:"summary"`
	Terms   []string `json:"keywords"`
	// Fallback 表示 Terms 来自档案兜底而非模型。
	Fallback bool `json:"-"`
}

// Builder 把档案转换为面向民用岗位的搜索关键词。
type Builder struct {
	cfg    Config
	llm    llm.Client
	codes  *codes.Table
	logger *zap.Logger
}

// NewBuilder 创建 Builder；table 为启动时构建的代码表，可为 nil。
func NewBuilder(cfg Config, client llm.Client, table *codes.Table, logger *zap.Logger) *Builder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, llm: client, codes: table, logger: logger}
}

// Enrich 返回用代码表富化后的档案副本。
func (b *Builder) Enrich(p model.Profile) model.Profile {
	return b.codes.Enrich(p)
}

// Build 生成关键词，从不返回错误：模型失败时退回档案职位名称，再退回 FallbackTerm。
func (b *Builder) Build(ctx context.Context, p model.Profile) Keywords {
	enriched := b.Enrich(p)
	fallback := func(reason string, err error) Keywords {
		terms := enriched.HistoryTitles()
		if len(terms) == 0 {
			terms = []string{FallbackTerm}
		}
		b.logger.Warn("keyword fallback", zap.String("reason", reason), zap.Error(err), zap.Strings("terms", terms))
		return Keywords{Summary: enriched.Summary, Terms: b.limit(terms), Fallback: true}
	}

	if b.llm == nil {
		return fallback("no llm client", nil)
	}

	doc, err := json.Marshal(enriched)
	if err != nil {
		return fallback("marshal profile", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	out, err := b.llm.Complete(ctx, summarySystemPrompt, strings.ReplaceAll(summaryUserPrompt, "{{PROFILE}}", string(doc)))
	if err != nil {
		return fallback("llm call failed", err)
	}

	var payload struct {
		Summary  string   `json:"summary"`
		Keywords []string `json:"keywords"`
	}
	if err := llm.DecodeObject(out, &payload); err != nil {
		return fallback("unparseable llm output", err)
	}
	terms := b.limit(payload.Keywords)
	if len(terms) == 0 {
		return fallback("llm returned no keywords", nil)
	}
	return Keywords{Summary: strings.TrimSpace(payload.Summary), Terms: terms}
}

func (b *Builder) limit(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
		if len(out) == b.cfg.MaxTerms {
			break
		}
	}
	return out
}

const summarySystemPrompt = `You are a career counselor who translates military experience into civilian terms for transitioning veterans.`

const summaryUserPrompt = `Read the veteran profile below (JSON). Write a short summary of the veteran's experience for a civilian employer, then list up to 5 short civilian job-search keywords or phrases that best describe roles this person is qualified for, most relevant first.

Respond with only a JSON object of the form {"summary": string, "keywords": [string]}.

Profile:
{{PROFILE}}`
