package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"aichat/internal/config"
	"aichat/internal/infrastructure/lock"
	"aichat/internal/model"
	"aichat/internal/repository"
	"aichat/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrProductInvalid = errors.New("无效的产品类型")
)

// PaymentService 支付服务
// 负责订单创建、状态查询与结算。结算（订单置为已支付 + 积分入账 + 流水
// + 事务消息）是一个原子单元，订单状态的条件流转是并发结算的串行化点。
type PaymentService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	orderRepo   *repository.OrderRepository
	userRepo    *repository.UserRepository
	logRepo     *repository.IntegralLogRepository
	outboxRepo  *repository.OutboxRepository
}

func NewPaymentService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PaymentService {
	return &PaymentService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		orderRepo:   repository.NewOrderRepository(db),
		userRepo:    repository.NewUserRepository(db),
		logRepo:     repository.NewIntegralLogRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type CreateOrderRequest struct {
	UserID      int64
	PayType     string
	ProductType int
}

type CreateOrderResult struct {
	OrderNo string `json:"order_no"`
	QrCode  string `json:"qr_code"`
}

// CreateOrder 创建充值订单
// 金额与到账积分在创建时从产品目录复制，之后不再重算。
// 支付参考号由订单号纯函数生成，订单一次插入完成。
func (s *PaymentService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	product, ok := model.GetProduct(req.ProductType)
	if !ok {
		return nil, ErrProductInvalid
	}

	if _, err := s.userRepo.GetByID(ctx, nil, req.UserID); err != nil {
		return nil, err
	}

	orderNo := idgen.GenerateOrderNo()
	order := &model.Order{
		OrderNo:     orderNo,
		UserID:      req.UserID,
		ProductType: req.ProductType,
		ProductName: product.Name,
		Amount:      product.Price,
		Integral:    product.Integral,
		PayType:     req.PayType,
		Status:      model.OrderStatusToPay,
		QrCode:      buildQrCode(orderNo),
		ExpiredAt:   time.Now().Add(time.Duration(s.cfg.Business.OrderTimeoutMinutes) * time.Minute),
	}

	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}

	return &CreateOrderResult{OrderNo: order.OrderNo, QrCode: order.QrCode}, nil
}

// GetOrderStatus 查询订单状态
// 归属校验在查询条件里完成，别人的订单等同于不存在
func (s *PaymentService) GetOrderStatus(ctx context.Context, orderNo string, userID int64) (int, error) {
	order, err := s.orderRepo.GetByOrderNoAndUserID(ctx, orderNo, userID)
	if err != nil {
		return model.OrderStatusNull, err
	}
	return order.Status, nil
}

// ListOrders 查询用户订单列表
func (s *PaymentService) ListOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListByUserID(ctx, userID, page, pageSize)
}

// ConfirmPayment 确认支付（模拟结算，真实网关场景应先向渠道验证）
//
// 幂等语义：
//   - 已支付：直接返回 PAID，不重复入账
//   - 已取消：对用户表现为订单不存在
//   - 待支付：走结算事务
func (s *PaymentService) ConfirmPayment(ctx context.Context, orderNo string, userID int64) (int, error) {
	order, err := s.orderRepo.GetByOrderNoAndUserID(ctx, orderNo, userID)
	if err != nil {
		return model.OrderStatusNull, err
	}

	return s.settle(ctx, order)
}

// HandleNotify 支付渠道异步通知
// 渠道会重试通知，结算本身幂等，重复通知是安全的。
// 处理结果不影响应答：handler 层固定返回 success 文本。
func (s *PaymentService) HandleNotify(ctx context.Context, orderNo string) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}

	_, err = s.settle(ctx, order)
	return err
}

// settle 订单结算
//
// 【关键点】一个事务内完成三件事：
//  1. 订单 TO_PAY -> PAID 条件流转（并发结算的串行化点，落败方重查后幂等返回）
//  2. 积分入账（带版本号条件更新）
//  3. 写积分流水 + 事务消息
//
// 任何一步失败整体回滚，不存在"订单已支付但积分没到账"的中间态。
func (s *PaymentService) settle(ctx context.Context, order *model.Order) (int, error) {
	switch order.Status {
	case model.OrderStatusPaid:
		return model.OrderStatusPaid, nil
	case model.OrderStatusCancelled, model.OrderStatusRefunded:
		return model.OrderStatusNull, repository.ErrOrderNotFound
	}

	// 订单级分布式锁：减少并发确认时的无效事务冲突。
	// 正确性不依赖这把锁，条件状态流转才是兜底。
	if s.redisClient != nil {
		confirmLock := lock.NewConfirmLock(s.redisClient, order.OrderNo, idgen.GenerateTransactionNo())
		if err := confirmLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return model.OrderStatusNull, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer confirmLock.Unlock(ctx)
	}

	var attemptErr error
	for i := 0; i < maxBalanceRetries; i++ {
		attemptErr = s.settleOnce(ctx, order)
		if attemptErr == nil {
			log.Printf("[Payment] 订单结算成功: orderNo=%s, userID=%d, integral=%d",
				order.OrderNo, order.UserID, order.Integral)
			return model.OrderStatusPaid, nil
		}

		if errors.Is(attemptErr, repository.ErrOptimisticLock) {
			continue
		}

		if errors.Is(attemptErr, repository.ErrOrderStatusInvalid) {
			// 状态流转落败：重查订单判定是并发结算还是已取消
			current, err := s.orderRepo.GetByOrderNo(ctx, order.OrderNo)
			if err != nil {
				return model.OrderStatusNull, err
			}
			if current.Status == model.OrderStatusPaid {
				return model.OrderStatusPaid, nil
			}
			return model.OrderStatusNull, repository.ErrOrderNotFound
		}

		return model.OrderStatusNull, attemptErr
	}
	return model.OrderStatusNull, attemptErr
}

func (s *PaymentService) settleOnce(ctx context.Context, order *model.Order) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, order.OrderNo, model.OrderStatusToPay, model.OrderStatusPaid); err != nil {
			return err
		}

		user, err := s.userRepo.GetByID(ctx, tx, order.UserID)
		if err != nil {
			return err
		}
		newBalance := user.Integral + order.Integral

		if err := s.userRepo.IncreaseIntegral(ctx, tx, order.UserID, order.Integral, user.Version); err != nil {
			return err
		}

		if err := s.logRepo.Create(ctx, tx, &model.IntegralLog{
			UserID:  order.UserID,
			Amount:  order.Integral,
			Balance: newBalance,
			Kind:    model.IntegralKindRecharge,
			Remark:  fmt.Sprintf("购买%s", order.ProductName),
		}); err != nil {
			return err
		}

		now := time.Now()
		msgPayload := map[string]interface{}{
			"order_no":     order.OrderNo,
			"user_id":      order.UserID,
			"amount":       order.Amount,
			"integral":     order.Integral,
			"product_type": order.ProductType,
			"status":       model.OrderStatusPaid,
			"paid_at":      now.Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: order.OrderNo,
			Topic:      s.cfg.Kafka.Topic.PayResult,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		})
	})
}

// buildQrCode 生成支付二维码内容（纯函数，创建订单前即可生成）
func buildQrCode(orderNo string) string {
	return fmt.Sprintf("https://qr.alipay.com/%s", orderNo)
}
