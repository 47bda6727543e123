package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"aichat/internal/config"
	"aichat/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 内存数据库
// 限制为单连接：事务持有唯一连接期间其他操作排队，
// 并发用例的执行顺序因此是确定的。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.IntegralLog{},
		&model.RechargeCard{},
		&model.Order{},
		&model.SystemConfig{},
		&model.OutboxMessage{},
	))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			ChatConsumeIntegral:  1,
			ImageConsumeIntegral: 8,
			RegisterGiftIntegral: 10,
			InviteRewardIntegral: 50,
			OrderTimeoutMinutes:  30,
			MaxRetryCount:        3,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{PayResult: "aichat.pay_result"},
		},
	}
}

var testUserSeq int64

// createTestUser 创建测试用户
// email 和 invite_code 都有唯一索引，必须逐个生成
func createTestUser(t *testing.T, db *gorm.DB, integral int64) *model.User {
	t.Helper()

	n := atomic.AddInt64(&testUserSeq, 1)
	user := &model.User{
		Email:      fmt.Sprintf("user%d@test.local", n),
		NickName:   fmt.Sprintf("测试用户%d", n),
		Integral:   integral,
		InviteCode: fmt.Sprintf("INV%06d", n),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createVipUser(t *testing.T, db *gorm.DB, integral int64) *model.User {
	t.Helper()

	user := createTestUser(t, db, integral)
	require.NoError(t, db.Model(user).Update("vip_user", true).Error)
	user.VipUser = true
	return user
}

func createTestCard(t *testing.T, db *gorm.DB, key string, integral int64) *model.RechargeCard {
	t.Helper()

	card := &model.RechargeCard{
		CardKey:  key,
		Integral: integral,
	}
	require.NoError(t, db.Create(card).Error)
	return card
}

func newIntegralService(t *testing.T, db *gorm.DB) *IntegralService {
	t.Helper()
	return NewIntegralService(db, newTestConfig(), NewConfigService(db))
}
