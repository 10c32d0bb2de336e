package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"next-mission/internal/model"
	"next-mission/internal/query"

	"golang.org/x/sync/singleflight"
)

// ErrUnknownKind 表示没有为该类型注册流水线。
var ErrUnknownKind = errors.New("unknown opportunity kind")

type runner interface {
	Kind() model.Kind
	Wait()
	run(ctx context.Context, owner string) (any, error)
}

// run 在 RunTimeout 内执行一次；取消由调用方通过 ctx 决定。
func (p *Pipeline[T]) run(ctx context.Context, owner string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.runTimeout)
	defer cancel()
	return p.Run(ctx, owner)
}

// Service 按类型路由发现请求，合并同一 (kind, owner) 的并发运行。
type Service struct {
	pipelines map[model.Kind]runner
	cache     CacheStore
	profiles  ProfileStore
	keywords  KeywordBuilder
	group     singleflight.Group
}

// NewService 创建 Service；流水线通过 Register 注册。
func NewService(cache CacheStore, profiles ProfileStore, keywords KeywordBuilder) *Service {
	return &Service{
		pipelines: make(map[model.Kind]runner),
		cache:     cache,
		profiles:  profiles,
		keywords:  keywords,
	}
}

// Register 注册某类型的流水线，同类型后注册者覆盖先注册者。
func Register[T model.Record](s *Service, p *Pipeline[T]) {
	s.pipelines[p.Kind()] = p
}

// Discover 运行 kind 对应的流水线，返回排序后的记录切片。
// 合并后的运行使用脱离调用方的上下文，某个调用方断开只结束它自己的等待。
func (s *Service) Discover(ctx context.Context, kind model.Kind, owner string) (any, error) {
	p, ok := s.pipelines[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(string(kind)+"\x00"+owner, func() (any, error) {
		return p.run(shared, owner)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cached 返回 owner 在该类型下已缓存的记录文档，按写入顺序。
func (s *Service) Cached(ctx context.Context, kind model.Kind, owner string) ([]json.RawMessage, error) {
	if _, ok := s.pipelines[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if s.cache == nil {
		return []json.RawMessage{}, nil
	}
	entries, err := s.cache.List(ctx, kind, owner)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	docs := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, json.RawMessage(e.Payload))
	}
	return docs, nil
}

// Summary 返回 owner 档案的展示摘要与搜索关键词。
func (s *Service) Summary(ctx context.Context, owner string) (query.Keywords, error) {
	if s.profiles == nil || s.keywords == nil {
		return query.Keywords{}, fmt.Errorf("service missing dependencies")
	}
	profile, err := s.profiles.Get(ctx, owner)
	if err != nil {
		return query.Keywords{}, fmt.Errorf("load profile: %w", err)
	}
	return s.keywords.Build(ctx, profile), nil
}

// Wait 等待所有流水线的异步缓存提交。
func (s *Service) Wait() {
	for _, p := range s.pipelines {
		p.Wait()
	}
}
