package storage

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"next-mission/internal/model"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// profileRecord 是加密后的档案行，明文只在内存中出现。
type profileRecord struct {
	OwnerIdentity string `gorm:"primaryKey"`
	Sealed        []byte `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (profileRecord) TableName() string { return "profiles" }

// Profiles 是加密档案存储：每个用户的密钥由服务端密钥与用户标识经 HKDF 派生，
// 用户标识同时作为附加认证数据。
type Profiles struct {
	db     *gorm.DB
	secret []byte
	now    func() time.Time
}

// NewProfiles 基于 Store 的数据库创建档案存储。
func NewProfiles(store *Store, secret string) *Profiles {
	return &Profiles{db: store.db, secret: []byte(secret), now: time.Now}
}

// Get 读取并解密档案；不存在时返回 model.ErrProfileNotFound。
func (p *Profiles) Get(ctx context.Context, owner string) (model.Profile, error) {
	var rec profileRecord
	err := p.db.WithContext(ctx).Where("owner_identity = ?", owner).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Profile{}, model.ErrProfileNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	plain, err := p.open(owner, rec.Sealed)
	if err != nil {
		return model.Profile{}, err
	}
	var profile model.Profile
	if err := json.Unmarshal(plain, &profile); err != nil {
		return model.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

// Upsert 加密并写入档案，已存在时覆盖。
func (p *Profiles) Upsert(ctx context.Context, owner string, profile model.Profile) error {
	plain, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	sealed, err := p.seal(owner, plain)
	if err != nil {
		return err
	}

	now := p.now()
	rec := profileRecord{OwnerIdentity: owner, Sealed: sealed, CreatedAt: now, UpdatedAt: now}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"sealed", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (p *Profiles) aead(owner string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, p.secret, []byte(owner), []byte("next-mission profile v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive profile key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return aead, nil
}

func (p *Profiles) seal(owner string, plain []byte) ([]byte, error) {
	aead, err := p.aead(owner)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, []byte(owner)), nil
}

func (p *Profiles) open(owner string, sealed []byte) ([]byte, error) {
	aead, err := p.aead(owner)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed profile too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(owner))
	if err != nil {
		return nil, fmt.Errorf("decrypt profile: %w", err)
	}
	return plain, nil
}
