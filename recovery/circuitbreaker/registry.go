package circuitbreaker

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/clock"
)

// Observer 接收熔断器状态转换与拒绝，*metrics.Collector 满足该接口
type Observer interface {
	RecordCircuitTransition(key, from, to string, toValue int)
	RecordCircuitRejection(key string)
}

// Registry 按键（依赖名或任务名）管理熔断器，首次 Get 时惰性创建
type Registry struct {
	config   Config
	clock    clock.Clock
	logger   *zap.Logger
	observer Observer

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry 创建熔断器注册表，所有熔断器共享 config
func NewRegistry(config Config, clk clock.Clock, observer Observer, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config:   config.normalized(),
		clock:    clock.OrReal(clk),
		logger:   logger,
		observer: observer,
		breakers: make(map[string]*Breaker),
	}
}

// Get 返回 key 对应的熔断器
func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[key]; ok {
		return b
	}

	cfg := r.config
	userHook := cfg.OnStateChange
	cfg.OnStateChange = func(k string, from, to State) {
		if r.observer != nil {
			r.observer.RecordCircuitTransition(k, from.String(), to.String(), int(to))
		}
		if userHook != nil {
			userHook(k, from, to)
		}
	}

	b := New(key, cfg, r.clock, r.logger)
	r.breakers[key] = b
	return b
}

// Reject 记录一次被拒绝的调用
func (r *Registry) Reject(key string) {
	if r.observer != nil {
		r.observer.RecordCircuitRejection(key)
	}
}

// Keys 返回已创建熔断器的键（排序）
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.breakers))
	for k := range r.breakers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshots 返回所有熔断器的快照（按键排序）
func (r *Registry) Snapshots() []Snapshot {
	keys := r.Keys()
	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.Get(k).Snapshot())
	}
	return out
}

// ResetAll 重置所有熔断器
func (r *Registry) ResetAll() {
	for _, k := range r.Keys() {
		r.Get(k).Reset()
	}
}
