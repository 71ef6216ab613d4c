package database

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResumeStore 读写 resumes 表。所有查询都带 user_id 条件。
type ResumeStore struct {
	db *gorm.DB
}

func NewResumeStore(db *gorm.DB) *ResumeStore {
	return &ResumeStore{db: db}
}

// Insert 为 userID 新建一行并返回包含 id 与时间戳的记录。
func (s *ResumeStore) Insert(ctx context.Context, userID string, data []byte) (Resume, error) {
	row := Resume{UserID: userID, Data: datatypes.JSON(data)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Resume{}, fmt.Errorf("insert resume: %w", err)
	}
	return row, nil
}

// Update 覆盖 id 且属于 userID 的行；没有命中任何行时返回 ErrNotFound。
func (s *ResumeStore) Update(ctx context.Context, id uint, userID string, data []byte) (Resume, error) {
	var row Resume
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Resume{}).
			Where("id = ? AND user_id = ?", id, userID).
			Update("data", datatypes.JSON(data))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	})
	if err != nil {
		return Resume{}, fmt.Errorf("update resume %d: %w", id, notFound(err))
	}
	return row, nil
}

// Get 返回 id 且属于 userID 的行。
func (s *ResumeStore) Get(ctx context.Context, id uint, userID string) (Resume, error) {
	var row Resume
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		return Resume{}, fmt.Errorf("get resume %d: %w", id, notFound(err))
	}
	return row, nil
}

// ListByUser 按最近更新时间倒序返回 userID 的全部简历。
func (s *ResumeStore) ListByUser(ctx context.Context, userID string) ([]Resume, error) {
	var rows []Resume
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	return rows, nil
}
