package repository

import (
	"context"
	"errors"

	"aichat/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrIntegralNotEnough = errors.New("积分不足")
	ErrOptimisticLock    = errors.New("乐观锁冲突，请重试")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 查询用户，tx 为 nil 时走默认连接
func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var user model.User
	err := tx.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// IncreaseIntegral 按版本号加积分
//
// 【关键点】带 version 条件的原子更新：
// 调用方在同一事务内先读出用户（拿到余额和版本号），再以该版本号
// 为条件更新。更新成功说明读到的余额就是被变更的余额，流水里的
// 余额快照因此可信；更新失败说明期间有并发变更，返回
// ErrOptimisticLock 由上层回滚重试。
func (r *UserRepository) IncreaseIntegral(ctx context.Context, tx *gorm.DB, userID int64, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", userID, version).
		Updates(map[string]interface{}{
			"integral": gorm.Expr("integral + ?", amount),
			"version":  gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 区分用户不存在与版本冲突；复用事务连接
		if _, err := r.GetByID(ctx, tx, userID); err != nil {
			return err
		}
		return ErrOptimisticLock
	}

	return nil
}

// DeductIntegral 按版本号扣积分
// 条件里带上 integral >= amount，余额不足时一行都不会更新，
// 保证任何情况下余额不会变成负数。
func (r *UserRepository) DeductIntegral(ctx context.Context, tx *gorm.DB, userID int64, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND integral >= ? AND version = ?", userID, amount, version).
		Updates(map[string]interface{}{
			"integral": gorm.Expr("integral - ?", amount),
			"version":  gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		user, err := r.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Integral < amount {
			return ErrIntegralNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}
