package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"next-mission/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisStore 把缓存条目存放在每个 (类型, 用户) 一个的 hash 中，字段为去重键。
// HSETNX 提供原子的"不存在才写入"。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient 解析 URL 并确认连接可用。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisStore 创建 RedisStore，prefix 为空时使用 next-mission。
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "next-mission"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(kind model.Kind, owner string) string {
	return fmt.Sprintf("%s:cache:%s:%s", r.prefix, kind, owner)
}

// Find 查找 (owner, key) 对应的缓存条目，不存在时返回 nil, nil。
func (r *RedisStore) Find(ctx context.Context, kind model.Kind, owner, key string) (*model.CacheEntry, error) {
	raw, err := r.client.HGet(ctx, r.key(kind, owner), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	var entry model.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}

// Insert 无条件写入。
func (r *RedisStore) Insert(ctx context.Context, kind model.Kind, entry *model.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := r.client.HSet(ctx, r.key(kind, entry.OwnerIdentity), entry.IdentityKey, raw).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// InsertIfAbsent 原子地写入不存在的条目，返回是否写入。
func (r *RedisStore) InsertIfAbsent(ctx context.Context, kind model.Kind, entry *model.CacheEntry) (bool, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("encode cache entry: %w", err)
	}
	created, err := r.client.HSetNX(ctx, r.key(kind, entry.OwnerIdentity), entry.IdentityKey, raw).Result()
	if err != nil {
		return false, fmt.Errorf("redis hsetnx: %w", err)
	}
	return created, nil
}

// List 返回用户的全部缓存条目，按写入时间排序。
func (r *RedisStore) List(ctx context.Context, kind model.Kind, owner string) ([]model.CacheEntry, error) {
	vals, err := r.client.HVals(ctx, r.key(kind, owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hvals: %w", err)
	}
	entries := make([]model.CacheEntry, 0, len(vals))
	for _, v := range vals {
		var entry model.CacheEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("decode cache entry: %w", err)
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ScrapedAt.Equal(entries[j].ScrapedAt) {
			return entries[i].ScrapedAt.Before(entries[j].ScrapedAt)
		}
		return entries[i].IdentityKey < entries[j].IdentityKey
	})
	return entries, nil
}

// Close 关闭连接。
func (r *RedisStore) Close() error {
	return r.client.Close()
}
