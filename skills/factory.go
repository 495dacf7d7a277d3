package skills

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/cache"
)

// 存储类型
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// StoreConfig 技能存储配置
type StoreConfig struct {
	Type    string
	BaseDir string
	Redis   cache.Config
}

// NewStore 按配置创建技能存储，Type 为空时使用内存存储
func NewStore(cfg StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case "", StoreMemory:
		return NewMemoryStore(), nil
	case StoreFile:
		return NewFileStore(cfg.BaseDir, logger)
	case StoreRedis:
		return NewRedisStore(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown skill store type %q", cfg.Type)
	}
}
