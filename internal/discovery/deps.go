package discovery

import (
	"context"

	"next-mission/internal/extract"
	"next-mission/internal/model"
	"next-mission/internal/query"
	"next-mission/internal/search"
)

// ProfileStore 是外部档案存储的只读视图。
type ProfileStore interface {
	Get(ctx context.Context, owner string) (model.Profile, error)
}

// CacheStore 是缓存/去重存储。Find 不存在时返回 nil, nil。
type CacheStore interface {
	Find(ctx context.Context, kind model.Kind, owner, key string) (*model.CacheEntry, error)
	Insert(ctx context.Context, kind model.Kind, entry *model.CacheEntry) error
	List(ctx context.Context, kind model.Kind, owner string) ([]model.CacheEntry, error)
}

// atomicInserter 由支持原子"不存在才写入"的存储实现（如 Redis）。
type atomicInserter interface {
	InsertIfAbsent(ctx context.Context, kind model.Kind, entry *model.CacheEntry) (bool, error)
}

// KeywordBuilder 生成搜索关键词并富化档案。
type KeywordBuilder interface {
	Build(ctx context.Context, p model.Profile) query.Keywords
	Enrich(p model.Profile) model.Profile
}

// Searcher 执行搜索，失败时返回空列表。
type Searcher interface {
	Search(ctx context.Context, q search.Query) []model.SearchResult
}

// PageFetcher 抓取页面可见文本。
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// RecordExtractor 把文本提取为结构化记录。
type RecordExtractor interface {
	Extract(ctx context.Context, schema *extract.Schema, text string, into model.Record) (extract.Outcome, error)
}

// RelevanceScorer 给记录打分，失败时返回空 Match。
type RelevanceScorer interface {
	Score(ctx context.Context, profile model.Profile, rec model.Record) model.Match
}
