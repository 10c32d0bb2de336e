package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"next-mission/internal/llm"
	"next-mission/internal/model"

	"go.uber.org/zap"
)

// Config 定义结构化提取配置。
type Config struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Outcome 说明提取结果来自哪一步解析。
type Outcome string

const (
	OutcomeParsed  Outcome = "parsed"
	OutcomeDefault Outcome = "default_record"
)

// Extractor 让 LLM 按 schema 从页面文本中提取结构化记录。
type Extractor struct {
	cfg    Config
	llm    llm.Client
	logger *zap.Logger
}

// New 创建 Extractor。
func New(cfg Config, client llm.Client, logger *zap.Logger) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, llm: client, logger: logger}
}

// Extract 把 text 提取到 into。模型输出无法解析时 into 保持全空（标签为空列表），
// 不返回错误；只有 LLM 调用本身失败才返回错误。
func (e *Extractor) Extract(ctx context.Context, schema *Schema, text string, into model.Record) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.llm.Complete(ctx, extractSystemPrompt, BuildPrompt(schema, text))
	if err != nil {
		return "", fmt.Errorf("llm extract: %w", err)
	}

	outcome := e.Decode(schema, out, into)
	return outcome, nil
}

// Decode 按恢复策略解析模型输出：第一个配平的 {...}，再整体解析，最后退回全空记录。
// schema 判定类型不符的字段置为 null，schema 之外的字段忽略。
func (e *Extractor) Decode(schema *Schema, out string, into model.Record) Outcome {
	defer into.Normalize()

	var doc map[string]any
	if err := llm.DecodeObject(out, &doc); err != nil || doc == nil {
		e.logger.Warn("extraction output unparseable, using default record", zap.Error(err), zap.String("output", clip(out, 200)))
		return OutcomeDefault
	}

	for _, field := range schema.Violations(doc) {
		e.logger.Debug("dropping type-invalid field", zap.String("field", field), zap.Any("value", doc[field]))
		delete(doc, field)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		if schema.Has(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw, err := json.Marshal(map[string]any{k: doc[k]})
		if err != nil {
			continue
		}
		if err := json.Unmarshal(raw, into); err != nil {
			e.logger.Debug("dropping undecodable field", zap.String("field", k), zap.Error(err))
		}
	}
	return OutcomeParsed
}

// BuildPrompt 生成提取提示词：字段清单加页面文本。
func BuildPrompt(schema *Schema, text string) string {
	var sb strings.Builder
	title := string(schema.Kind)
	if schema.Title != "" {
		title = schema.Title
	}
	fmt.Fprintf(&sb, "Extract a single %s from the text below.\n\nFields:\n", strings.ToLower(title))
	for _, f := range schema.Fields {
		fmt.Fprintf(&sb, "- %s (%s)", f.Name, f.Type)
		if f.Description != "" {
			fmt.Fprintf(&sb, ": %s", f.Description)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\nUse null for any field not present in the text and [] for empty lists. Do not invent values.\n")
	sb.WriteString("Respond with only one JSON object using exactly these field names.\n\nText:\n")
	sb.WriteString(text)
	return sb.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

const extractSystemPrompt = `You extract structured data from web pages for a veteran career service. You answer with JSON only.`
