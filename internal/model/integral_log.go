package model

import (
	"time"
)

// ============================================================================
// 积分变动类型常量
// ============================================================================

const (
	IntegralKindRegister = "register" // 注册赠送
	IntegralKindInvite   = "invite"   // 邀请奖励
	IntegralKindRecharge = "recharge" // 充值（卡密/订单）
	IntegralKindConsume  = "consume"  // 消费（对话/图片）
	IntegralKindRefund   = "refund"   // 退款
	IntegralKindGift     = "gift"     // 活动赠送
	IntegralKindAdmin    = "admin"    // 管理员调整
)

// IntegralLog 积分流水表
// 记录每一笔积分变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 与余额变更在同一事务内写入 —— 保证 sum(amount) == 当前余额
// 3. 记录变动后余额快照 —— 便于校验余额一致性
type IntegralLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`                  // 变动积分（正数入账，负数出账）
	Balance   int64     `gorm:"not null" json:"balance"`                 // 变动后余额快照
	Kind      string    `gorm:"type:varchar(20);not null" json:"kind"`   // 变动类型
	Remark    string    `gorm:"type:varchar(256)" json:"remark"`         // 备注
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (IntegralLog) TableName() string {
	return "integral_log"
}
