package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PayResult string `mapstructure:"pay_result"`
}

// BusinessConfig 业务参数
// 积分消耗单价可被 system_config 表中的同名配置覆盖（见 ConfigService）
type BusinessConfig struct {
	ChatConsumeIntegral  int64 `mapstructure:"chat_consume_integral"`  // 每次对话消耗积分
	ImageConsumeIntegral int64 `mapstructure:"image_consume_integral"` // 每次图片生成消耗积分
	RegisterGiftIntegral int64 `mapstructure:"register_gift_integral"` // 注册赠送积分
	InviteRewardIntegral int64 `mapstructure:"invite_reward_integral"` // 邀请奖励积分
	OrderTimeoutMinutes  int   `mapstructure:"order_timeout_minutes"`  // 订单待支付超时
	MaxRetryCount        int   `mapstructure:"max_retry_count"`        // outbox 消息最大重试次数
}

type AdminConfig struct {
	Token string `mapstructure:"token"` // 管理接口共享令牌
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 与原始环境变量默认值保持一致
	viper.SetDefault("business.chat_consume_integral", 1)
	viper.SetDefault("business.image_consume_integral", 8)
	viper.SetDefault("business.register_gift_integral", 10)
	viper.SetDefault("business.invite_reward_integral", 50)
	viper.SetDefault("business.order_timeout_minutes", 30)
	viper.SetDefault("business.max_retry_count", 3)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
