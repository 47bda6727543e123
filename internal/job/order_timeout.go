package job

import (
	"context"
	"log"
	"time"

	"aichat/internal/config"
	"aichat/internal/model"
	"aichat/internal/repository"

	"gorm.io/gorm"
)

// OrderTimeoutJob 订单超时任务
// 周期性扫描超过支付时限的 TO_PAY 订单并置为 CANCELLED。
// 取消走与结算相同的条件流转：已被并发结算的订单不会被误取消。
type OrderTimeoutJob struct {
	db        *gorm.DB
	orderRepo *repository.OrderRepository
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewOrderTimeoutJob(db *gorm.DB, cfg *config.Config) *OrderTimeoutJob {
	return &OrderTimeoutJob{
		db:        db,
		orderRepo: repository.NewOrderRepository(db),
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  10 * time.Second,
		batchSize: 100,
	}
}

func (j *OrderTimeoutJob) Start(ctx context.Context) {
	log.Println("[OrderTimeoutJob] 订单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OrderTimeoutJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[OrderTimeoutJob] 任务停止")
			return
		case <-ticker.C:
			j.cancelExpiredOrders(ctx)
		}
	}
}

func (j *OrderTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *OrderTimeoutJob) cancelExpiredOrders(ctx context.Context) {
	orders, err := j.orderRepo.GetExpiredOrders(ctx, j.batchSize)
	if err != nil {
		log.Printf("[OrderTimeoutJob] 查询超时订单失败: %v", err)
		return
	}

	if len(orders) == 0 {
		return
	}

	cancelledCount := 0
	for _, order := range orders {
		err := j.orderRepo.UpdateStatus(ctx, nil, order.OrderNo, model.OrderStatusToPay, model.OrderStatusCancelled)
		if err != nil {
			// 条件流转落败通常是订单刚好被结算，跳过即可
			continue
		}
		cancelledCount++
		log.Printf("[OrderTimeoutJob] 订单已超时取消: orderNo=%s, userID=%d, amount=%d",
			order.OrderNo, order.UserID, order.Amount)
	}

	log.Printf("[OrderTimeoutJob] 本次取消 %d 个超时订单", cancelledCount)
}
