package repository

import (
	"context"

	"aichat/internal/model"

	"gorm.io/gorm"
)

type IntegralLogRepository struct {
	db *gorm.DB
}

func NewIntegralLogRepository(db *gorm.DB) *IntegralLogRepository {
	return &IntegralLogRepository{db: db}
}

func (r *IntegralLogRepository) Create(ctx context.Context, tx *gorm.DB, logEntry *model.IntegralLog) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(logEntry).Error
}

func (r *IntegralLogRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.IntegralLog, int64, error) {
	var logs []*model.IntegralLog
	var total int64

	query := r.db.WithContext(ctx).Model(&model.IntegralLog{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error

	return logs, total, err
}

// SumByUserID 汇总用户全部流水金额（对账用）
func (r *IntegralLogRepository) SumByUserID(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.IntegralLog{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *IntegralLogRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.IntegralLog{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
