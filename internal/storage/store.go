package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"next-mission/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Store 封装 SQLite 数据库访问：按类型分表的机会缓存，以及加密档案。
// 缓存去重依赖写入前的存在性检查，没有唯一约束。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store 并自动迁移数据表。
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	for _, kind := range model.Kinds() {
		table := kind.CacheTable()
		if err := db.Table(table).AutoMigrate(&model.CacheEntry{}); err != nil {
			return nil, fmt.Errorf("auto migrate %s: %w", table, err)
		}
		// SQLite 索引名全库唯一，按表命名
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_owner_key ON %s (owner_identity, identity_key)", table, table)
		if err := db.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("create index on %s: %w", table, err)
		}
	}
	if err := db.AutoMigrate(&profileRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate profiles: %w", err)
	}

	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// Find 查找 (owner, key) 对应的缓存条目，不存在时返回 nil, nil。
func (s *Store) Find(ctx context.Context, kind model.Kind, owner, key string) (*model.CacheEntry, error) {
	var entry model.CacheEntry
	err := s.db.WithContext(ctx).Table(kind.CacheTable()).
		Where("owner_identity = ? AND identity_key = ?", owner, key).
		Order("id ASC").
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cache entry: %w", err)
	}
	return &entry, nil
}

// Insert 无条件写入一条缓存条目。
func (s *Store) Insert(ctx context.Context, kind model.Kind, entry *model.CacheEntry) error {
	if err := s.db.WithContext(ctx).Table(kind.CacheTable()).Create(entry).Error; err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	return nil
}

// List 按写入顺序返回用户的全部缓存条目。
func (s *Store) List(ctx context.Context, kind model.Kind, owner string) ([]model.CacheEntry, error) {
	entries := make([]model.CacheEntry, 0)
	err := s.db.WithContext(ctx).Table(kind.CacheTable()).
		Where("owner_identity = ?", owner).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	return entries, nil
}

// Count 返回用户在该类型下的缓存条目数。
func (s *Store) Count(ctx context.Context, kind model.Kind, owner string) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Table(kind.CacheTable()).Where("owner_identity = ?", owner).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return total, nil
}
