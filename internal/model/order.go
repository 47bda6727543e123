package model

import (
	"time"
)

// ============================================================================
// 订单状态机
// ============================================================================
//
//	NULL(0) -> TO_PAY(1) -> PAID(2)
//	                     -> CANCELLED(3)
//	PAID(2) -> REFUNDED(4)  （预留，当前不提供退款操作）

const (
	OrderStatusNull      = 0
	OrderStatusToPay     = 1
	OrderStatusPaid      = 2
	OrderStatusCancelled = 3
	OrderStatusRefunded  = 4
)

var ValidStatusTransitions = map[int][]int{
	OrderStatusNull:  {OrderStatusToPay},
	OrderStatusToPay: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:  {OrderStatusRefunded},
}

func CanTransitionTo(currentStatus, targetStatus int) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	PayTypeAlipay = "alipay"
)

// Order 充值订单表
// integral 面值在创建时从产品目录复制，之后不再重算
type Order struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID      int64      `gorm:"index;not null" json:"user_id"`
	ProductType int        `gorm:"not null" json:"product_type"`
	ProductName string     `gorm:"type:varchar(64);not null" json:"product_name"`
	Amount      int64      `gorm:"not null" json:"amount"`   // 法币金额（分）
	Integral    int64      `gorm:"not null" json:"integral"` // 到账积分
	PayType     string     `gorm:"type:varchar(20);not null" json:"pay_type"`
	Status      int        `gorm:"index;not null;default:1" json:"status"`
	QrCode      string     `gorm:"type:varchar(256)" json:"qr_code"` // 支付二维码/参考号
	ExpiredAt   time.Time  `gorm:"not null" json:"expired_at"`
	PaidAt      *time.Time `json:"paid_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "pay_order"
}
