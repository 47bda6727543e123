package model

import (
	"time"
)

// 配置键常量
const (
	ConfigKeyChatConsumeIntegral  = "chat_consume_integral"
	ConfigKeyImageConsumeIntegral = "image_consume_integral"
)

// SystemConfig 系统配置表
// 按 key 存储可在运行期调整的配置项，前置一层进程内缓存（见 service.ConfigService）
type SystemConfig struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Key       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:varchar(512);not null" json:"value"`
	Encrypted bool      `gorm:"not null;default:false" json:"encrypted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemConfig) TableName() string {
	return "system_config"
}
