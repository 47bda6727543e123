package repository

import (
	"context"
	"errors"

	"aichat/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SystemConfigRepository struct {
	db *gorm.DB
}

func NewSystemConfigRepository(db *gorm.DB) *SystemConfigRepository {
	return &SystemConfigRepository{db: db}
}

// Get 查询配置项，不存在返回 nil
func (r *SystemConfigRepository) Get(ctx context.Context, key string) (*model.SystemConfig, error) {
	var cfg model.SystemConfig
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// Upsert 写入或覆盖配置项
func (r *SystemConfigRepository) Upsert(ctx context.Context, key, value string, encrypted bool) error {
	cfg := &model.SystemConfig{
		Key:       key,
		Value:     value,
		Encrypted: encrypted,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "encrypted"}),
		}).
		Create(cfg).Error
}

func (r *SystemConfigRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("`key` = ?", key).
		Delete(&model.SystemConfig{}).Error
}
