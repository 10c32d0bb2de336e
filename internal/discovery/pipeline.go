package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"next-mission/internal/extract"
	"next-mission/internal/fetcher"
	"next-mission/internal/model"
	"next-mission/internal/scoring"
	"next-mission/internal/search"
	"next-mission/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config 定义流水线并发与超时配置。RunTimeout 限制经 Service 合并后的一次运行，
// 该运行不随单个调用方取消。
type Config struct {
	Workers       int           `yaml:"workers" json:"workers"`
	ScoreWorkers  int           `yaml:"score_workers" json:"score_workers"`
	MaxCandidates int           `yaml:"max_candidates" json:"max_candidates"`
	CommitTimeout time.Duration `yaml:"commit_timeout" json:"commit_timeout"`
	RunTimeout    time.Duration `yaml:"run_timeout" json:"run_timeout"`
	SchemaDir     string        `yaml:"schema_dir" json:"schema_dir"`
}

// Deps 汇集流水线的协作者。
type Deps struct {
	Profiles  ProfileStore
	Cache     CacheStore
	Keywords  KeywordBuilder
	Searcher  Searcher
	Fetcher   PageFetcher
	Extractor RecordExtractor
	Scorer    RelevanceScorer
	Logger    *zap.Logger
}

var (
	errNoText   = errors.New("no text for candidate")
	errRejected = errors.New("record rejected")
)

// Pipeline 对单一机会类型执行一次完整的发现流程。
type Pipeline[T model.Record] struct {
	spec          Spec[T]
	deps          Deps
	workers       int
	scoreWorkers  int
	maxCandidates int
	commitTimeout time.Duration
	runTimeout    time.Duration
	schemaDir     string
	logger        *zap.Logger
	commits       sync.WaitGroup
	now           func() time.Time
}

// NewPipeline 创建 Pipeline，解析配置并填充默认值。
func NewPipeline[T model.Record](spec Spec[T], deps Deps, cfg Config) *Pipeline[T] {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	scoreWorkers := cfg.ScoreWorkers
	if scoreWorkers <= 0 {
		scoreWorkers = workers
	}
	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 25
	}
	commitTimeout := cfg.CommitTimeout
	if commitTimeout <= 0 {
		commitTimeout = 30 * time.Second
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	schemaDir := cfg.SchemaDir
	if schemaDir == "" {
		schemaDir = "schemas"
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline[T]{
		spec:          spec,
		deps:          deps,
		workers:       workers,
		scoreWorkers:  scoreWorkers,
		maxCandidates: maxCandidates,
		commitTimeout: commitTimeout,
		runTimeout:    runTimeout,
		schemaDir:     schemaDir,
		logger:        logger.With(zap.String("kind", string(spec.Kind))),
		now:           time.Now,
	}
}

// Kind 返回流水线处理的类型。
func (p *Pipeline[T]) Kind() model.Kind { return p.spec.Kind }

// Wait 等待所有已发起的异步缓存提交结束。
func (p *Pipeline[T]) Wait() { p.commits.Wait() }

// Run 为 owner 执行一次发现，返回已排序的记录；缓存写入在返回后异步完成。
func (p *Pipeline[T]) Run(ctx context.Context, owner string) ([]T, error) {
	if p.deps.Profiles == nil || p.deps.Keywords == nil || p.deps.Searcher == nil ||
		p.deps.Fetcher == nil || p.deps.Extractor == nil {
		return nil, fmt.Errorf("pipeline missing dependencies")
	}
	logger := p.logger.With(zap.String("run_id", uuid.NewString()), zap.String("owner", owner))

	profile, err := p.deps.Profiles.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	schema, err := extract.LoadSchema(p.schemaDir, p.spec.Kind)
	if err != nil {
		return nil, err
	}

	keywords := p.deps.Keywords.Build(ctx, profile)
	candidates := p.deps.Searcher.Search(ctx, p.query(profile, keywords.Terms))
	if len(candidates) > p.maxCandidates {
		candidates = candidates[:p.maxCandidates]
	}
	logger.Info("search finished",
		zap.Strings("keywords", keywords.Terms),
		zap.Bool("keyword_fallback", keywords.Fallback),
		zap.Int("candidates", len(candidates)))

	slots := make([]T, len(candidates))
	filled := make([]bool, len(candidates))
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, cand := range candidates {
		g.Go(func() error {
			rec, err := p.process(ctx, logger, schema, cand)
			if err != nil {
				logger.Info("candidate skipped", zap.String("url", cand.URL), zap.Error(err))
				return nil
			}
			slots[i] = rec
			filled[i] = true
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]T, 0, len(slots))
	for i, rec := range slots {
		if filled[i] {
			records = append(records, rec)
		}
	}

	if p.spec.Scored && p.deps.Scorer != nil {
		p.score(ctx, p.deps.Keywords.Enrich(profile), records)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scoring.Rank(records)
	}

	p.commit(ctx, logger, owner, records)
	logger.Info("discovery finished", zap.Int("accepted", len(records)), zap.Int("candidates", len(candidates)))
	return records, nil
}

func (p *Pipeline[T]) query(profile model.Profile, terms []string) search.Query {
	q := search.Query{
		Terms:  terms,
		Site:   p.spec.Site,
		Suffix: p.spec.Suffix,
		Max:    p.spec.MaxResults,
	}
	if p.spec.UseLocation {
		q.Location = strings.TrimSpace(profile.Location)
		if q.Location == "" {
			q.Location = DefaultLocation
		}
	}
	return q
}

// process 处理单个候选：抓取（失败退回摘要）、提取、校验、补齐身份键。
func (p *Pipeline[T]) process(ctx context.Context, logger *zap.Logger, schema *extract.Schema, cand model.SearchResult) (T, error) {
	var zero T

	text, err := p.deps.Fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		logger.Debug("fetch fallback to snippet",
			zap.String("url", cand.URL),
			zap.Bool("blocked", errors.Is(err, fetcher.ErrBlocked)),
			zap.Error(err))
		text = snippetText(cand)
	}
	if strings.TrimSpace(text) == "" {
		return zero, errNoText
	}

	rec := p.spec.New()
	outcome, err := p.deps.Extractor.Extract(ctx, schema, text, rec)
	if err != nil {
		return zero, fmt.Errorf("extract: %w", err)
	}
	if outcome == extract.OutcomeDefault {
		logger.Debug("extraction produced default record", zap.String("url", cand.URL))
	}

	if d := validate.Check(rec); !d.Accepted {
		return zero, fmt.Errorf("%w: %s", errRejected, d.Reason)
	}

	key := rec.IdentityKey()
	if strings.TrimSpace(key) == "" {
		key = cand.URL
	}
	rec.SetIdentityKey(model.CanonicalURL(key))
	return rec, nil
}

func (p *Pipeline[T]) score(ctx context.Context, profile model.Profile, records []T) {
	var g errgroup.Group
	g.SetLimit(p.scoreWorkers)
	for _, rec := range records {
		scorable, ok := any(rec).(model.Scorable)
		if !ok {
			continue
		}
		g.Go(func() error {
			scorable.SetMatch(p.deps.Scorer.Score(ctx, profile, rec))
			return nil
		})
	}
	_ = g.Wait()
}

// commit 在后台把记录写入缓存；使用脱离请求的上下文，已写入的条目不回滚。
func (p *Pipeline[T]) commit(ctx context.Context, logger *zap.Logger, owner string, records []T) {
	if p.deps.Cache == nil || len(records) == 0 {
		return
	}
	entries := make([]*model.CacheEntry, 0, len(records))
	now := p.now()
	for _, rec := range records {
		entry, err := model.NewCacheEntry(owner, rec, now)
		if err != nil {
			logger.Warn("cache entry build failed", zap.String("key", rec.IdentityKey()), zap.Error(err))
			continue
		}
		entries = append(entries, &entry)
	}

	p.commits.Add(1)
	go func() {
		defer p.commits.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.commitTimeout)
		defer cancel()

		inserted, err := p.insertAll(ctx, entries)
		if err != nil {
			logger.Error("cache commit failed", zap.Int("inserted", inserted), zap.Error(err))
			return
		}
		logger.Info("cache commit finished", zap.Int("inserted", inserted), zap.Int("entries", len(entries)))
	}()
}

func (p *Pipeline[T]) insertAll(ctx context.Context, entries []*model.CacheEntry) (int, error) {
	inserted := 0
	inserter, _ := p.deps.Cache.(atomicInserter)
	for _, entry := range entries {
		if inserter != nil {
			ok, err := inserter.InsertIfAbsent(ctx, p.spec.Kind, entry)
			if err != nil {
				return inserted, fmt.Errorf("insert %s: %w", entry.IdentityKey, err)
			}
			if ok {
				inserted++
			}
			continue
		}

		existing, err := p.deps.Cache.Find(ctx, p.spec.Kind, entry.OwnerIdentity, entry.IdentityKey)
		if err != nil {
			return inserted, fmt.Errorf("find %s: %w", entry.IdentityKey, err)
		}
		if existing != nil {
			continue
		}
		if err := p.deps.Cache.Insert(ctx, p.spec.Kind, entry); err != nil {
			return inserted, fmt.Errorf("insert %s: %w", entry.IdentityKey, err)
		}
		inserted++
	}
	return inserted, nil
}

func snippetText(cand model.SearchResult) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{cand.Title, cand.Snippet} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
