package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"aichat/internal/model"
	"aichat/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 测试不依赖 Redis，结算正确性由订单状态条件流转保证
func newPaymentService(t *testing.T, db *gorm.DB) *PaymentService {
	t.Helper()
	return NewPaymentService(db, nil, newTestConfig())
}

func TestCreateOrder_InvalidProduct(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)

	user := createTestUser(t, db, 0)

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		UserID:      user.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 99,
	})
	assert.ErrorIs(t, err, ErrProductInvalid)
}

func TestCreateOrder_UserNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		UserID:      99999,
		PayType:     model.PayTypeAlipay,
		ProductType: 1,
	})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestCreateOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)
	ctx := context.Background()

	user := createTestUser(t, db, 0)

	result, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:      user.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.OrderNo)
	assert.True(t, strings.HasPrefix(result.OrderNo, "ORD"))
	assert.Contains(t, result.QrCode, result.OrderNo)

	// 金额与到账积分从产品目录复制
	var order model.Order
	require.NoError(t, db.Where("order_no = ?", result.OrderNo).First(&order).Error)
	assert.Equal(t, model.OrderStatusToPay, order.Status)
	assert.Equal(t, "基础版", order.ProductName)
	assert.Equal(t, int64(1000), order.Amount)
	assert.Equal(t, int64(100), order.Integral)
	assert.False(t, order.ExpiredAt.IsZero())
	assert.Nil(t, order.PaidAt)
}

func TestOrderLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)
	ctx := context.Background()

	user := createTestUser(t, db, 50)

	result, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:      user.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 1,
	})
	require.NoError(t, err)

	status, err := svc.GetOrderStatus(ctx, result.OrderNo, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusToPay, status)

	status, err = svc.ConfirmPayment(ctx, result.OrderNo, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, status)

	// 积分入账 + 流水 + 订单支付时间
	var current model.User
	require.NoError(t, db.First(&current, user.ID).Error)
	assert.Equal(t, int64(150), current.Integral)

	var logs []model.IntegralLog
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, model.IntegralKindRecharge, logs[0].Kind)
	assert.Equal(t, int64(100), logs[0].Amount)
	assert.Equal(t, int64(150), logs[0].Balance)
	assert.Equal(t, "购买基础版", logs[0].Remark)

	var order model.Order
	require.NoError(t, db.Where("order_no = ?", result.OrderNo).First(&order).Error)
	assert.Equal(t, model.OrderStatusPaid, order.Status)
	assert.NotNil(t, order.PaidAt)

	// 结算事务内落了一条事务消息
	var messages []model.OutboxMessage
	require.NoError(t, db.Where("message_key = ?", result.OrderNo).Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, "aichat.pay_result", messages[0].Topic)
	assert.Equal(t, model.OutboxStatusPending, messages[0].Status)
	assert.Contains(t, messages[0].Payload, result.OrderNo)
}

// 归属校验：别人的订单等同于不存在
func TestGetOrderStatus_Ownership(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)
	ctx := context.Background()

	owner := createTestUser(t, db, 0)
	other := createTestUser(t, db, 0)

	result, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:      owner.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 2,
	})
	require.NoError(t, err)

	_, err = svc.GetOrderStatus(ctx, result.OrderNo, other.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	_, err = svc.ConfirmPayment(ctx, result.OrderNo, other.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

// 重复确认幂等：只入账一次，后续调用直接返回已支付
func TestConfirmPayment_Idempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)
	ctx := context.Background()

	user := createTestUser(t, db, 0)

	result, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:      user.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 2,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		status, err := svc.ConfirmPayment(ctx, result.OrderNo, user.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPaid, status)
	}

	var current model.User
	require.NoError(t, db.First(&current, user.ID).Error)
	assert.Equal(t, int64(500), current.Integral)

	var logCount int64
	require.NoError(t, db.Model(&model.IntegralLog{}).Where("user_id = ?", user.ID).Count(&logCount).Error)
	assert.Equal(t, int64(1), logCount)
}

// 并发确认：所有调用方都拿到已支付结果，但入账只发生一次
func TestConfirmPayment_Concurrent(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)
	ctx := context.Background()

	user := createTestUser(t, db, 0)

	result, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:      user.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 3,
	})
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	statuses := make([]int, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			statuses[idx], errs[idx] = svc.ConfirmPayment(ctx, result.OrderNo, user.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, model.OrderStatusPaid, statuses[i])
	}

	var current model.User
	require.NoError(t, db.First(&current, user.ID).Error)
	assert.Equal(t, int64(2000), current.Integral)

	var logCount int64
	require.NoError(t, db.Model(&model.IntegralLog{}).Where("user_id = ?", user.ID).Count(&logCount).Error)
	assert.Equal(t, int64(1), logCount)

	var msgCount int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Where("message_key = ?", result.OrderNo).Count(&msgCount).Error)
	assert.Equal(t, int64(1), msgCount)
}

// 已取消订单对用户表现为不存在，且不会入账
func TestConfirmPayment_CancelledOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)
	orderRepo := repository.NewOrderRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, 0)

	result, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:      user.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 1,
	})
	require.NoError(t, err)

	require.NoError(t, orderRepo.UpdateStatus(ctx, nil, result.OrderNo, model.OrderStatusToPay, model.OrderStatusCancelled))

	_, err = svc.ConfirmPayment(ctx, result.OrderNo, user.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	var current model.User
	require.NoError(t, db.First(&current, user.ID).Error)
	assert.Equal(t, int64(0), current.Integral)
}

func TestHandleNotify(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)
	ctx := context.Background()

	user := createTestUser(t, db, 0)

	result, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:      user.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 1,
	})
	require.NoError(t, err)

	// 渠道会重试通知，重复处理必须安全
	require.NoError(t, svc.HandleNotify(ctx, result.OrderNo))
	require.NoError(t, svc.HandleNotify(ctx, result.OrderNo))

	var current model.User
	require.NoError(t, db.First(&current, user.ID).Error)
	assert.Equal(t, int64(100), current.Integral)

	err = svc.HandleNotify(ctx, "ORD00000000000000000000")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestListOrders(t *testing.T) {
	db := newTestDB(t)
	svc := newPaymentService(t, db)
	ctx := context.Background()

	user := createTestUser(t, db, 0)
	other := createTestUser(t, db, 0)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID:      user.ID,
			PayType:     model.PayTypeAlipay,
			ProductType: 1,
		})
		require.NoError(t, err)
	}
	_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:      other.ID,
		PayType:     model.PayTypeAlipay,
		ProductType: 2,
	})
	require.NoError(t, err)

	orders, total, err := svc.ListOrders(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, orders, 3)
	for _, o := range orders {
		assert.Equal(t, user.ID, o.UserID)
	}
}
