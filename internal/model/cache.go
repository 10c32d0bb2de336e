package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// CacheEntry 是某个用户已缓存的一条机会记录。
// - OwnerIdentity/IdentityKey: 去重键，插入前检查，不是唯一约束
// - Payload: 带 owner_identity 与 scraped_at 注解的记录文档
// - ScrapedAt: 写入时间，缓存条目写入后不再更新
type CacheEntry struct {
	ID            uint           `gorm:"primaryKey" json:"-"`
	OwnerIdentity string         `gorm:"not null" json:"owner_identity"`
	IdentityKey   string         `gorm:"not null" json:"identity_key"`
	ScrapedAt     time.Time      `json:"scraped_at"`
	Payload       datatypes.JSON `json:"payload"`
}

// NewCacheEntry 把记录序列化并加上 owner_identity、scraped_at 注解。
func NewCacheEntry(owner string, rec Record, now time.Time) (CacheEntry, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("marshal record: %w", err)
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return CacheEntry{}, fmt.Errorf("decode record: %w", err)
	}
	doc["owner_identity"] = owner
	doc["scraped_at"] = now.UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(doc)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("marshal cache entry: %w", err)
	}
	return CacheEntry{
		OwnerIdentity: owner,
		IdentityKey:   rec.IdentityKey(),
		ScrapedAt:     now.UTC(),
		Payload:       datatypes.JSON(payload),
	}, nil
}
