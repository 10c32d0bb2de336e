package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"next-mission/internal/discovery"
	"next-mission/internal/extract"
	"next-mission/internal/fetcher"
	"next-mission/internal/llm"
	"next-mission/internal/model"
	"next-mission/internal/query"
	"next-mission/internal/scoring"
	"next-mission/internal/search"
)

// AppConfig 应用配置。
type AppConfig struct {
	Server   ServerConfig                        `yaml:"server"`
	Database DatabaseConfig                      `yaml:"database"`
	Redis    RedisConfig                         `yaml:"redis"`
	LLM      llm.Config                          `yaml:"llm"`
	Search   search.Config                       `yaml:"search"`
	Fetcher  fetcher.Config                      `yaml:"fetcher"`
	Query    query.Config                        `yaml:"query"`
	Extract  extract.Config                      `yaml:"extract"`
	Scoring  scoring.Config                      `yaml:"scoring"`
	Pipeline discovery.Config                    `yaml:"pipeline"`
	Kinds    map[model.Kind]discovery.KindConfig `yaml:"kinds"`
	CodesDir string                              `yaml:"codes_dir"`
	Profile  ProfileConfig                       `yaml:"profile"`
	LogLevel string                              `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig 非空时缓存改用 Redis，并启用原子去重写入。
type RedisConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Prefix string `yaml:"prefix"`
}

type ProfileConfig struct {
	Secret string `yaml:"secret" validate:"required,min=16"`
}

var configValidator = validator.New()

func loadConfig() (AppConfig, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && os.Getenv("CONFIG_FILE") == "":
		// 没有配置文件时完全依赖环境变量与默认值。
	default:
		return AppConfig{}, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// applyEnv 用环境变量覆盖密钥类配置。
func applyEnv(cfg *AppConfig, getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	if strings.EqualFold(cfg.LLM.Provider, "gemini") {
		set(&cfg.LLM.APIKey, "GEMINI_API_KEY", "LLM_API_KEY")
	} else {
		set(&cfg.LLM.APIKey, "LLM_API_KEY", "GROQ_API_KEY")
	}
	set(&cfg.Search.SerpAPIKey, "SERPAPI_KEY")
	set(&cfg.Search.USAJobsKey, "USAJOBS_API_KEY")
	set(&cfg.Search.USAJobsEmail, "USAJOBS_EMAIL")
	set(&cfg.Profile.Secret, "PROFILE_SECRET")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Database.Path, "DATABASE_PATH")
	set(&cfg.Server.Addr, "ADDR")
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == "" {
		cfg.Server.ShutdownTimeout = "10s"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "next-mission.db"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "next-mission"
	}
	if cfg.CodesDir == "" {
		cfg.CodesDir = "data/codes"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Kinds == nil {
		cfg.Kinds = make(map[model.Kind]discovery.KindConfig)
	}
	for _, kind := range model.Kinds() {
		kc := cfg.Kinds[kind]
		if len(kc.Sources) == 0 {
			kc.Sources = discovery.DefaultSources(kind)
		}
		cfg.Kinds[kind] = kc
	}
}

func validateConfig(cfg AppConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for kind, kc := range cfg.Kinds {
		if _, err := model.ParseKind(string(kind)); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		for _, src := range kc.Sources {
			if !knownSource(src) {
				return fmt.Errorf("invalid config: kind %s: unknown source %q", kind, src)
			}
		}
	}
	return nil
}
