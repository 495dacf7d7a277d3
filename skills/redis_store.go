package skills

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/cache"
)

const cleanupTimeout = 5 * time.Second

// RedisStore 基于 Redis 的技能存储。
// 键布局：<prefix>skill:<id>:meta（JSON）、<prefix>skill:<id>:artifact、
// <prefix>skill:<id>:lock（SETNX 守卫）与索引集合 <prefix>skills。
type RedisStore struct {
	manager *cache.Manager
	owned   bool
	logger  *zap.Logger
}

// NewRedisStore 连接 Redis 并创建存储
func NewRedisStore(cfg cache.Config, logger *zap.Logger) (*RedisStore, error) {
	manager, err := cache.NewManager(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis skill store: %w", err)
	}
	s := NewRedisStoreWithManager(manager, logger)
	s.owned = true
	return s, nil
}

// NewRedisStoreWithManager 复用已有的 Manager，Close 不会关闭它
func NewRedisStoreWithManager(manager *cache.Manager, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		manager: manager,
		logger:  logger.With(zap.String("component", "skill_redis_store")),
	}
}

func (r *RedisStore) metaKey(id string) string     { return r.manager.Key("skill", id, "meta") }
func (r *RedisStore) artifactKey(id string) string { return r.manager.Key("skill", id, "artifact") }
func (r *RedisStore) lockKey(id string) string     { return r.manager.Key("skill", id, "lock") }
func (r *RedisStore) indexKey() string             { return r.manager.Key("skills") }

// Save 实现 Store.Save
func (r *RedisStore) Save(ctx context.Context, skill *Skill) error {
	if err := skill.Validate(); err != nil {
		return err
	}

	ok, err := r.manager.SetNX(ctx, r.lockKey(skill.ID), skill.Metadata.GeneratedAt.UTC().Format(time.RFC3339Nano), 0)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSkillExists
	}

	if err := r.write(ctx, skill); err != nil {
		// 清理守卫与已写入的键，下一次保存可以重试
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if derr := r.manager.Delete(cleanupCtx, r.lockKey(skill.ID), r.artifactKey(skill.ID), r.metaKey(skill.ID)); derr != nil {
			r.logger.Warn("failed to clean up partial skill", zap.String("skill_id", skill.ID), zap.Error(derr))
		}
		return err
	}

	r.logger.Debug("skill saved", zap.String("skill_id", skill.ID))
	return nil
}

func (r *RedisStore) write(ctx context.Context, skill *Skill) error {
	if err := r.manager.Set(ctx, r.artifactKey(skill.ID), skill.Artifact, 0); err != nil {
		return err
	}
	if err := r.manager.SetJSON(ctx, r.metaKey(skill.ID), skill, 0); err != nil {
		return err
	}
	return r.manager.SAdd(ctx, r.indexKey(), skill.ID)
}

// Exists 实现 Store.Exists，以元数据键为准
func (r *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.manager.Exists(ctx, r.metaKey(id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Load 实现 Store.Load
func (r *RedisStore) Load(ctx context.Context, id string) (*Skill, error) {
	var skill Skill
	if err := r.manager.GetJSON(ctx, r.metaKey(id), &skill); err != nil {
		if cache.IsCacheMiss(err) {
			return nil, ErrSkillNotFound
		}
		return nil, err
	}

	artifact, err := r.manager.Get(ctx, r.artifactKey(id))
	if err != nil && !cache.IsCacheMiss(err) {
		return nil, err
	}
	skill.Artifact = artifact
	return &skill, nil
}

// List 实现 Store.List，按 ID 排序
func (r *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := r.manager.SMembers(ctx, r.indexKey())
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close 实现 Store.Close
func (r *RedisStore) Close() error {
	if !r.owned {
		return nil
	}
	return r.manager.Close()
}
