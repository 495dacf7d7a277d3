package skills

import (
	"context"
	"sort"
	"sync"
)

// Store 技能持久化协作者。
// Save 对已存在的 ID 返回 ErrSkillExists，Load 对未知 ID 返回 ErrSkillNotFound。
type Store interface {
	Save(ctx context.Context, skill *Skill) error
	Exists(ctx context.Context, id string) (bool, error)
	Load(ctx context.Context, id string) (*Skill, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// MemoryStore 进程内存储
type MemoryStore struct {
	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{skills: make(map[string]*Skill)}
}

// Save 实现 Store.Save
func (m *MemoryStore) Save(_ context.Context, skill *Skill) error {
	if err := skill.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.skills[skill.ID]; ok {
		return ErrSkillExists
	}
	m.skills[skill.ID] = skill.Clone()
	return nil
}

// Exists 实现 Store.Exists
func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.skills[id]
	return ok, nil
}

// Load 实现 Store.Load
func (m *MemoryStore) Load(_ context.Context, id string) (*Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.skills[id]
	if !ok {
		return nil, ErrSkillNotFound
	}
	return s.Clone(), nil
}

// List 实现 Store.List，按 ID 排序
func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.skills))
	for id := range m.skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close 实现 Store.Close
func (m *MemoryStore) Close() error { return nil }
