package service

import (
	"context"
	"strconv"
	"sync"

	"aichat/internal/repository"

	"gorm.io/gorm"
)

// ConfigService 系统配置服务
//
// system_config 表前置一层进程内缓存：
//   - 首次读取时懒加载入缓存，之后命中缓存不再查库
//   - Set/Delete 写库成功后同步更新缓存（写穿透），无 TTL
//   - 多实例部署时各进程缓存独立，跨实例失效不在本服务范围内
type ConfigService struct {
	repo *repository.SystemConfigRepository

	mu    sync.RWMutex
	cache map[string]string
}

func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{
		repo:  repository.NewSystemConfigRepository(db),
		cache: make(map[string]string),
	}
}

// Get 读取配置项，不存在时 found 为 false
func (s *ConfigService) Get(ctx context.Context, key string) (value string, found bool, err error) {
	s.mu.RLock()
	value, found = s.cache[key]
	s.mu.RUnlock()
	if found {
		return value, true, nil
	}

	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if cfg == nil {
		return "", false, nil
	}

	s.mu.Lock()
	s.cache[key] = cfg.Value
	s.mu.Unlock()
	return cfg.Value, true, nil
}

// GetInt64 读取整型配置项，缺失或非法时返回 fallback
func (s *ConfigService) GetInt64(ctx context.Context, key string, fallback int64) int64 {
	value, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// Set 写入配置项（先落库，成功后更新缓存）
func (s *ConfigService) Set(ctx context.Context, key, value string, encrypted bool) error {
	if err := s.repo.Upsert(ctx, key, value, encrypted); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	return nil
}

// Delete 删除配置项并使缓存失效
func (s *ConfigService) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// ClearCache 清空缓存（下次读取重新回源）
func (s *ConfigService) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}
