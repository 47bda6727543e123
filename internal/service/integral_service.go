package service

import (
	"context"
	"errors"
	"fmt"

	"aichat/internal/config"
	"aichat/internal/model"
	"aichat/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrAmountInvalid = errors.New("积分数量必须大于0")
)

// 乐观锁冲突重试次数
// 超过次数仍冲突才把冲突抛给调用方
const maxBalanceRetries = 3

// IntegralService 积分服务
// 所有积分变更的唯一入口：余额更新与流水写入永远在同一事务内，
// 保证 sum(流水.amount) == 当前余额。
type IntegralService struct {
	db            *gorm.DB
	cfg           *config.Config
	configService *ConfigService
	userRepo      *repository.UserRepository
	logRepo       *repository.IntegralLogRepository
	cardRepo      *repository.RechargeCardRepository
}

func NewIntegralService(db *gorm.DB, cfg *config.Config, configService *ConfigService) *IntegralService {
	return &IntegralService{
		db:            db,
		cfg:           cfg,
		configService: configService,
		userRepo:      repository.NewUserRepository(db),
		logRepo:       repository.NewIntegralLogRepository(db),
		cardRepo:      repository.NewRechargeCardRepository(db),
	}
}

// GetBalance 查询积分余额
func (s *IntegralService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	return user.Integral, nil
}

// AddIntegral 加积分
//
// 事务内读出余额和版本号，带版本号条件更新并写流水。
// 版本号冲突说明期间有并发变更，整个事务回滚后重试，
// 这样流水里的余额快照始终与实际变更对得上。
func (s *IntegralService) AddIntegral(ctx context.Context, userID int64, amount int64, kind, remark string) (int64, error) {
	if amount <= 0 {
		return 0, ErrAmountInvalid
	}

	var newBalance int64
	err := s.withBalanceRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			user, err := s.userRepo.GetByID(ctx, tx, userID)
			if err != nil {
				return err
			}

			newBalance = user.Integral + amount
			if err := s.userRepo.IncreaseIntegral(ctx, tx, userID, amount, user.Version); err != nil {
				return err
			}
			return s.logRepo.Create(ctx, tx, &model.IntegralLog{
				UserID:  userID,
				Amount:  amount,
				Balance: newBalance,
				Kind:    kind,
				Remark:  remark,
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// DeductIntegral 扣积分
// 余额不足时一分都不扣，余额永远不会为负。
func (s *IntegralService) DeductIntegral(ctx context.Context, userID int64, amount int64, kind, remark string) (int64, error) {
	if amount <= 0 {
		return 0, ErrAmountInvalid
	}

	var newBalance int64
	err := s.withBalanceRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			user, err := s.userRepo.GetByID(ctx, tx, userID)
			if err != nil {
				return err
			}

			newBalance = user.Integral - amount
			if err := s.userRepo.DeductIntegral(ctx, tx, userID, amount, user.Version); err != nil {
				return err
			}
			return s.logRepo.Create(ctx, tx, &model.IntegralLog{
				UserID:  userID,
				Amount:  -amount,
				Balance: newBalance,
				Kind:    kind,
				Remark:  remark,
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// RechargeByKey 卡密充值
//
// 【关键点】核销与入账必须在同一事务内：
// 卡密核销是条件更新（used = false -> true），并发兑换同一张卡
// 只有一个事务能核销成功；事务内任何一步失败整体回滚，
// 不会出现"卡被核销但积分没到账"。
func (s *IntegralService) RechargeByKey(ctx context.Context, userID int64, key string) (int64, error) {
	card, err := s.cardRepo.GetByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	if card.Used {
		return 0, repository.ErrCardInvalid
	}

	var newBalance int64
	err = s.withBalanceRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.cardRepo.MarkUsed(ctx, tx, card.ID, userID); err != nil {
				return err
			}

			user, err := s.userRepo.GetByID(ctx, tx, userID)
			if err != nil {
				return err
			}

			newBalance = user.Integral + card.Integral
			if err := s.userRepo.IncreaseIntegral(ctx, tx, userID, card.Integral, user.Version); err != nil {
				return err
			}
			return s.logRepo.Create(ctx, tx, &model.IntegralLog{
				UserID:  userID,
				Amount:  card.Integral,
				Balance: newBalance,
				Kind:    model.IntegralKindRecharge,
				Remark:  "卡密充值",
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// CheckSufficient 消费前置校验
// VIP 用户直接放行，普通用户比较余额与单次消耗
func (s *IntegralService) CheckSufficient(ctx context.Context, userID int64, isImage bool) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return false, err
	}
	if user.VipUser {
		return true, nil
	}
	return user.Integral >= s.consumeCost(ctx, isImage), nil
}

// Consume 消费扣积分
// 调用方约定：先 CheckSufficient，上游操作成功后再 Consume
func (s *IntegralService) Consume(ctx context.Context, userID int64, isImage bool) (int64, error) {
	remark := "对话消耗"
	if isImage {
		remark = "图片生成"
	}
	return s.DeductIntegral(ctx, userID, s.consumeCost(ctx, isImage), model.IntegralKindConsume, remark)
}

// GrantRegisterGift 注册赠送积分
func (s *IntegralService) GrantRegisterGift(ctx context.Context, userID int64) (int64, error) {
	return s.AddIntegral(ctx, userID, s.cfg.Business.RegisterGiftIntegral, model.IntegralKindRegister, "注册赠送")
}

// GrantInviteReward 邀请奖励积分
func (s *IntegralService) GrantInviteReward(ctx context.Context, inviterID int64, inviteeEmail string) (int64, error) {
	return s.AddIntegral(ctx, inviterID, s.cfg.Business.InviteRewardIntegral, model.IntegralKindInvite,
		fmt.Sprintf("邀请用户: %s", inviteeEmail))
}

// AdminAddIntegral 管理员加积分
func (s *IntegralService) AdminAddIntegral(ctx context.Context, userID int64, amount int64, remark string) (int64, error) {
	if remark == "" {
		remark = "管理员充值"
	}
	return s.AddIntegral(ctx, userID, amount, model.IntegralKindAdmin, remark)
}

// ListLogs 查询积分流水
func (s *IntegralService) ListLogs(ctx context.Context, userID int64, page, pageSize int) ([]*model.IntegralLog, int64, error) {
	return s.logRepo.ListByUserID(ctx, userID, page, pageSize)
}

// consumeCost 单次消费积分
// 优先读 system_config 里的动态配置，读不到回落到启动配置
func (s *IntegralService) consumeCost(ctx context.Context, isImage bool) int64 {
	if isImage {
		return s.configService.GetInt64(ctx, model.ConfigKeyImageConsumeIntegral, s.cfg.Business.ImageConsumeIntegral)
	}
	return s.configService.GetInt64(ctx, model.ConfigKeyChatConsumeIntegral, s.cfg.Business.ChatConsumeIntegral)
}

// withBalanceRetry 乐观锁冲突重试
func (s *IntegralService) withBalanceRetry(fn func() error) error {
	var err error
	for i := 0; i < maxBalanceRetries; i++ {
		err = fn()
		if !errors.Is(err, repository.ErrOptimisticLock) {
			return err
		}
	}
	return err
}
