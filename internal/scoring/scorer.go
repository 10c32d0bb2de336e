package scoring

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"next-mission/internal/llm"
	"next-mission/internal/model"

	"go.uber.org/zap"
)

// Config 定义评分配置。
type Config struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// DeriveLabels 为 true 时按分段重新计算标签，而不是采用模型给出的标签。
	DeriveLabels bool `yaml:"derive_labels" json:"derive_labels"`
}

// Scorer 让 LLM 给档案与记录的匹配度打分。
type Scorer struct {
	cfg    Config
	llm    llm.Client
	logger *zap.Logger
}

// New 创建 Scorer。
func New(cfg Config, client llm.Client, logger *zap.Logger) *Scorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{cfg: cfg, llm: client, logger: logger}
}

// Score 返回匹配结果；任何失败都返回分数与标签均为 null 的 Match。
func (s *Scorer) Score(ctx context.Context, profile model.Profile, rec model.Record) model.Match {
	profileDoc, err := json.Marshal(profile)
	if err != nil {
		return model.Match{}
	}
	recordDoc, err := json.Marshal(rec)
	if err != nil {
		return model.Match{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	user := strings.NewReplacer("{{PROFILE}}", string(profileDoc), "{{RECORD}}", string(recordDoc)).Replace(scoreUserPrompt)
	out, err := s.llm.Complete(ctx, scoreSystemPrompt, user)
	if err != nil {
		s.logger.Warn("score call failed", zap.String("key", rec.IdentityKey()), zap.Error(err))
		return model.Match{}
	}
	return s.parse(out, rec.IdentityKey())
}

func (s *Scorer) parse(out, key string) model.Match {
	var payload struct {
		Score json.Number `json:"score"`
		Label string      `json:"label"`
	}
	if err := llm.DecodeObject(out, &payload); err != nil {
		s.logger.Warn("score output unparseable", zap.String("key", key), zap.Error(err))
		return model.Match{}
	}
	score, err := payload.Score.Float64()
	if err != nil || math.IsNaN(score) || score < 0 || score > 100 {
		s.logger.Warn("score out of range", zap.String("key", key), zap.String("score", payload.Score.String()))
		return model.Match{}
	}

	label := normalizeLabel(payload.Label)
	if s.cfg.DeriveLabels {
		label = model.LabelFor(score)
	}
	m := model.Match{Score: &score}
	if label != "" {
		m.Label = &label
	}
	return m
}

// normalizeLabel 规范化模型标签的大小写与空白；未知标签原样保留。
func normalizeLabel(label string) string {
	upper := strings.ToUpper(strings.Join(strings.Fields(label), " "))
	switch upper {
	case model.LabelStrong, model.LabelOK, model.LabelWeak:
		return upper
	case "STRONG", "OK", "WEAK":
		return upper + " MATCH"
	}
	return strings.TrimSpace(label)
}

const scoreSystemPrompt = `You are a career advisor rating how well an opportunity fits a transitioning military veteran. You answer with JSON only.`

const scoreUserPrompt = `Rate how relevant the opportunity is to the veteran on a scale from 0 to 100, considering their military occupation, training, experience level and location.

Use these labels:
- "STRONG MATCH" for a score of 80 or more
- "OK MATCH" for a score from 50 to 79
- "WEAK MATCH" for a score below 50

Respond with only a JSON object of the form {"score": number, "label": string}.

Veteran profile:
{{PROFILE}}

Opportunity:
{{RECORD}}`
