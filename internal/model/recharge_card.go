package model

import (
	"time"
)

// RechargeCard 充值卡密表
// 卡密由管理后台预先生成（本服务不负责发卡），每张卡只能被兑换一次。
// used 字段的翻转必须通过条件更新完成，保证并发兑换时只有一个请求成功。
type RechargeCard struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	CardKey   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"card_key"` // 卡密
	Integral  int64      `gorm:"not null" json:"integral"`                              // 面值积分
	Used      bool       `gorm:"not null;default:false;index" json:"used"`
	UsedBy    int64      `json:"used_by"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (RechargeCard) TableName() string {
	return "recharge_card"
}
