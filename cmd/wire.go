package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"next-mission/internal/api"
	"next-mission/internal/codes"
	"next-mission/internal/discovery"
	"next-mission/internal/extract"
	"next-mission/internal/fetcher"
	"next-mission/internal/llm"
	"next-mission/internal/model"
	"next-mission/internal/query"
	"next-mission/internal/scoring"
	"next-mission/internal/search"
	"next-mission/internal/storage"
)

// ProfileStore 是命令行导入档案所需的读写接口。
type ProfileStore interface {
	Get(ctx context.Context, owner string) (model.Profile, error)
	Upsert(ctx context.Context, owner string, profile model.Profile) error
}

// Service 是命令行与 HTTP 层使用的发现服务。
type Service interface {
	api.Discoverer
	Wait()
}

type appDeps struct {
	service  Service
	profiles ProfileStore
}

type buildFunc func(ctx context.Context, cfg AppConfig, logger *zap.Logger) (appDeps, func(), error)

const (
	sourceSerpAPI     = "serpapi"
	sourceSerpAPIJobs = "serpapi_jobs"
	sourceUSAJobs     = "usajobs"
	sourceDuckDuckGo  = "duckduckgo"
)

func knownSource(name string) bool {
	switch name {
	case sourceSerpAPI, sourceSerpAPIJobs, sourceUSAJobs, sourceDuckDuckGo:
		return true
	}
	return false
}

// buildApp 按配置装配存储、LLM、搜索源与三条流水线。
func buildApp(ctx context.Context, cfg AppConfig, logger *zap.Logger) (appDeps, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close resource", zap.Error(err))
			}
		}
	}
	fail := func(err error) (appDeps, func(), error) {
		cleanup()
		return appDeps{}, func() {}, err
	}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return fail(fmt.Errorf("init store: %w", err))
	}
	closers = append(closers, store.Close)

	var cache discovery.CacheStore = store
	if cfg.Redis.URL != "" {
		client, err := storage.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fail(fmt.Errorf("init redis: %w", err))
		}
		rs := storage.NewRedisStore(client, cfg.Redis.Prefix)
		closers = append(closers, rs.Close)
		cache = rs
		logger.Info("cache backend", zap.String("backend", "redis"))
	} else {
		logger.Info("cache backend", zap.String("backend", "sqlite"), zap.String("path", cfg.Database.Path))
	}

	profiles := storage.NewProfiles(store, cfg.Profile.Secret)

	httpClient := &http.Client{Timeout: 90 * time.Second}
	llmClient, err := llm.New(ctx, cfg.LLM, httpClient)
	if err != nil {
		return fail(fmt.Errorf("init llm: %w", err))
	}
	if c, ok := llmClient.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	table, err := codes.Load(cfg.CodesDir)
	if err != nil {
		return fail(fmt.Errorf("load code tables: %w", err))
	}
	logger.Info("code tables loaded", zap.String("dir", cfg.CodesDir), zap.Int("entries", table.Len()))

	keywords := query.NewBuilder(cfg.Query, llmClient, table, logger.Named("query"))
	pages := fetcher.New(cfg.Fetcher, &http.Client{}, logger.Named("fetcher"))
	extractor := extract.New(cfg.Extract, llmClient, logger.Named("extract"))
	scorer := scoring.New(cfg.Scoring, llmClient, logger.Named("scoring"))

	svc := discovery.NewService(cache, profiles, keywords)
	for _, kind := range model.Kinds() {
		kc := cfg.Kinds[kind]
		sources := make([]search.Source, 0, len(kc.Sources))
		for _, name := range kc.Sources {
			sources = append(sources, buildSource(name, cfg, httpClient))
		}
		deps := discovery.Deps{
			Profiles:  profiles,
			Cache:     cache,
			Keywords:  keywords,
			Searcher:  search.NewClient(cfg.Search, sources, logger.Named("search").With(zap.String("kind", string(kind)))),
			Fetcher:   pages,
			Extractor: extractor,
			Scorer:    scorer,
			Logger:    logger.Named("discovery"),
		}
		switch kind {
		case model.KindJobs:
			discovery.Register(svc, discovery.NewPipeline(discovery.JobSpec(kc), deps, cfg.Pipeline))
		case model.KindMentors:
			discovery.Register(svc, discovery.NewPipeline(discovery.MentorSpec(kc), deps, cfg.Pipeline))
		case model.KindEvents:
			discovery.Register(svc, discovery.NewPipeline(discovery.EventSpec(kc), deps, cfg.Pipeline))
		}
	}

	return appDeps{service: svc, profiles: profiles}, cleanup, nil
}

func buildSource(name string, cfg AppConfig, client *http.Client) search.Source {
	switch name {
	case sourceSerpAPIJobs:
		return search.NewSerpAPI("", cfg.Search.SerpAPIKey, "google_jobs", client)
	case sourceUSAJobs:
		return search.NewUSAJobs("", cfg.Search.USAJobsKey, cfg.Search.USAJobsEmail, client)
	case sourceDuckDuckGo:
		return search.NewDuckDuckGo("", cfg.Fetcher.UserAgent, client)
	default:
		return search.NewSerpAPI("", cfg.Search.SerpAPIKey, cfg.Search.SerpAPIEngine, client)
	}
}
