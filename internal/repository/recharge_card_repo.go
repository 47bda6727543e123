package repository

import (
	"context"
	"errors"
	"time"

	"aichat/internal/model"

	"gorm.io/gorm"
)

var (
	ErrCardInvalid = errors.New("充值卡密无效")
)

type RechargeCardRepository struct {
	db *gorm.DB
}

func NewRechargeCardRepository(db *gorm.DB) *RechargeCardRepository {
	return &RechargeCardRepository{db: db}
}

func (r *RechargeCardRepository) Create(ctx context.Context, card *model.RechargeCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *RechargeCardRepository) GetByKey(ctx context.Context, key string) (*model.RechargeCard, error) {
	var card model.RechargeCard
	err := r.db.WithContext(ctx).Where("card_key = ?", key).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardInvalid
		}
		return nil, err
	}
	return &card, nil
}

// MarkUsed 核销卡密
//
// 【关键点】条件更新 used = false -> true，并发兑换同一张卡时
// 只有一个事务能更新到行，落败方拿到 ErrCardInvalid。
// 绝不能先查再改，否则两个请求都会看到 used == false。
func (r *RechargeCardRepository) MarkUsed(ctx context.Context, tx *gorm.DB, cardID int64, userID int64) error {
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.RechargeCard{}).
		Where("id = ? AND used = ?", cardID, false).
		Updates(map[string]interface{}{
			"used":    true,
			"used_by": userID,
			"used_at": &now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCardInvalid
	}

	return nil
}
