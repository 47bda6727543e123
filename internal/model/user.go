package model

import (
	"time"
)

// User 用户表
// integral 字段是整个积分系统的核心数据，只能通过 IntegralService 变更
type User struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email      string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	NickName   string    `gorm:"type:varchar(64)" json:"nick_name"`
	Integral   int64     `gorm:"not null;default:0" json:"integral"`             // 积分余额（永不为负）
	VipUser    bool      `gorm:"not null;default:false" json:"vip_user"`         // VIP 用户免扣积分
	IsAdmin    bool      `gorm:"not null;default:false" json:"is_admin"`         // 管理员标记
	InviteCode string    `gorm:"type:varchar(16);uniqueIndex" json:"invite_code"` // 邀请码
	InvitedBy  string    `gorm:"type:varchar(16)" json:"invited_by"`
	Version    int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
