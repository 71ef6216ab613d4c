package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEmailTaken 表示注册邮箱已被其他身份占用。
var ErrEmailTaken = errors.New("email already registered")

// ProfileStore 读写 profiles 表。
type ProfileStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db, now: time.Now}
}

// Upsert 按 id 写入身份资料，冲突时只更新 email、name 与 updated_at，
// 已有的密码哈希保持不变。
func (s *ProfileStore) Upsert(ctx context.Context, p Profile) error {
	p.UpdatedAt = s.now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}

// Create 新建密码身份，邮箱已被密码身份占用时返回 ErrEmailTaken。
func (s *ProfileStore) Create(ctx context.Context, p Profile) error {
	p.UpdatedAt = s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Profile{}).Where("email = ? AND password_hash <> ?", p.Email, "").Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
}

func (s *ProfileStore) Get(ctx context.Context, id string) (Profile, error) {
	var p Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", notFound(err))
	}
	return p, nil
}

// GetByEmail 只查找设置了密码的身份。
func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (Profile, error) {
	var p Profile
	if err := s.db.WithContext(ctx).Where("email = ? AND password_hash <> ?", email, "").First(&p).Error; err != nil {
		return Profile{}, fmt.Errorf("get profile by email: %w", notFound(err))
	}
	return p, nil
}
