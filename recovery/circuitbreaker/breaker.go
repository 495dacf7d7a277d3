package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/internal/clock"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// 错误定义
var (
	// ErrCircuitOpen 熔断器打开，调用被拒绝
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyCallsInHalfOpen 半开状态试探调用已满，同时匹配 ErrCircuitOpen
	ErrTooManyCallsInHalfOpen = fmt.Errorf("%w: too many calls in half-open state", ErrCircuitOpen)
)

// Config 熔断器配置
type Config struct {
	// FailureThreshold 连续失败次数阈值（触发熔断）
	FailureThreshold int

	// RecoveryTimeout 熔断恢复等待时间（从 OPEN -> HALF_OPEN）
	RecoveryTimeout time.Duration

	// SuccessThreshold 半开状态下连续成功多少次后关闭
	SuccessThreshold int

	// HalfOpenMaxCalls 半开状态下允许的最大试探调用数，不小于 SuccessThreshold
	HalfOpenMaxCalls int

	// IsFailure 判断错误是否计入失败（nil 表示所有错误都计入）
	IsFailure func(err error) bool

	// OnStateChange 状态变更回调，在锁外同步调用
	OnStateChange func(key string, from, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 1,
		HalfOpenMaxCalls: 1,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.HalfOpenMaxCalls < c.SuccessThreshold {
		c.HalfOpenMaxCalls = c.SuccessThreshold
	}
	return c
}

// Snapshot 熔断器状态快照
type Snapshot struct {
	Key               string
	State             State
	FailureCount      int
	OpenedAt          time.Time
	HalfOpenCalls     int
	HalfOpenSuccesses int
}

type transition struct {
	from, to State
}

// Breaker 三态熔断器。
// 调用方先 Allow，再在调用结束后 RecordSuccess / RecordFailure 各一次，
// 一次"调用"的粒度由调用方决定（恢复引擎以重试结束后的最终结果为一次）。
type Breaker struct {
	key    string
	config Config
	clock  clock.Clock
	logger *zap.Logger

	mu                sync.Mutex
	state             State
	failureCount      int       // 连续失败次数
	openedAt          time.Time // 最近一次进入 OPEN 的时间
	halfOpenCalls     int       // 半开状态下已放行的调用数
	halfOpenSuccesses int       // 半开状态下连续成功数
}

// New 创建熔断器
func New(key string, config Config, clk clock.Clock, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		key:    key,
		config: config.normalized(),
		clock:  clock.OrReal(clk),
		logger: logger.With(zap.String("component", "circuit_breaker"), zap.String("key", key)),
		state:  StateClosed,
	}
}

// Key 返回熔断器的键
func (b *Breaker) Key() string { return b.key }

// Config 返回生效配置
func (b *Breaker) Config() Config { return b.config }

// Allow 检查是否允许调用。OPEN 且未到恢复时间返回 ErrCircuitOpen，
// 半开状态试探名额用尽返回 ErrTooManyCallsInHalfOpen。
func (b *Breaker) Allow() error {
	b.mu.Lock()
	var fired []transition
	err := b.allowLocked(&fired)
	b.mu.Unlock()

	b.notify(fired)
	return err
}

func (b *Breaker) allowLocked(fired *[]transition) error {
	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		// 检查是否可以进入半开状态
		if b.clock.Now().Sub(b.openedAt) >= b.config.RecoveryTimeout {
			b.setState(StateHalfOpen, fired)
			b.halfOpenCalls = 1
			b.halfOpenSuccesses = 0
			b.logger.Info("circuit half-open, allowing trial call")
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		if b.halfOpenCalls >= b.config.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCalls++
		return nil

	default:
		return fmt.Errorf("unknown circuit state: %v", b.state)
	}
}

// Release 归还一个未使用的半开试探名额（Allow 之后调用未真正发生时使用）
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.halfOpenCalls > 0 {
		b.halfOpenCalls--
	}
}

// RecordSuccess 记录一次成功调用
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	var fired []transition
	switch b.state {
	case StateClosed:
		b.failureCount = 0

	case StateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.config.SuccessThreshold {
			b.logger.Info("circuit recovered",
				zap.Int("half_open_successes", b.halfOpenSuccesses),
			)
			b.setState(StateClosed, &fired)
			b.failureCount = 0
			b.halfOpenCalls = 0
			b.halfOpenSuccesses = 0
		}

	case StateOpen:
		// 打开状态不应该有调用（例如 Trip 期间在途的调用）
		b.logger.Debug("success reported while open, ignored")
	}
	b.mu.Unlock()

	b.notify(fired)
}

// RecordFailure 记录一次失败调用
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	var fired []transition
	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold {
			b.logger.Warn("circuit opened",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.FailureThreshold),
			)
			b.open(&fired)
		}

	case StateHalfOpen:
		// 半开状态任何失败立即重新打开
		b.failureCount++
		b.logger.Warn("trial call failed, circuit re-opened",
			zap.Int("half_open_calls", b.halfOpenCalls),
		)
		b.open(&fired)

	case StateOpen:
		b.logger.Debug("failure reported while open, ignored")
	}
	b.mu.Unlock()

	b.notify(fired)
}

// Record 根据 err 记录结果，IsFailure 判定为非失败的错误按成功计
func (b *Breaker) Record(err error) {
	if err == nil || (b.config.IsFailure != nil && !b.config.IsFailure(err)) {
		b.RecordSuccess()
		return
	}
	b.RecordFailure()
}

// Call 在熔断器保护下执行 fn
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := b.Allow(); err != nil {
		return nil, err
	}
	result, err := fn(ctx)
	b.Record(err)
	return result, err
}

// Trip 强制打开熔断器
func (b *Breaker) Trip() {
	b.mu.Lock()
	var fired []transition
	b.logger.Warn("circuit tripped", zap.String("from_state", b.state.String()))
	b.open(&fired)
	b.mu.Unlock()

	b.notify(fired)
}

// Reset 重置熔断器（手动恢复）
func (b *Breaker) Reset() {
	b.mu.Lock()
	var fired []transition
	oldState := b.state
	b.setState(StateClosed, &fired)
	b.failureCount = 0
	b.halfOpenCalls = 0
	b.halfOpenSuccesses = 0
	b.openedAt = time.Time{}
	b.mu.Unlock()

	b.logger.Info("circuit reset", zap.String("from_state", oldState.String()))
	b.notify(fired)
}

// State 获取当前状态。OPEN 状态下不会因为时间流逝自动变化，转换发生在下一次 Allow。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot 返回状态快照
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Key:               b.key,
		State:             b.state,
		FailureCount:      b.failureCount,
		OpenedAt:          b.openedAt,
		HalfOpenCalls:     b.halfOpenCalls,
		HalfOpenSuccesses: b.halfOpenSuccesses,
	}
}

func (b *Breaker) open(fired *[]transition) {
	b.setState(StateOpen, fired)
	b.openedAt = b.clock.Now()
	b.halfOpenCalls = 0
	b.halfOpenSuccesses = 0
}

// setState 设置状态，回调在释放锁之后由 notify 触发
func (b *Breaker) setState(newState State, fired *[]transition) {
	oldState := b.state
	b.state = newState
	if oldState != newState {
		*fired = append(*fired, transition{from: oldState, to: newState})
	}
}

func (b *Breaker) notify(fired []transition) {
	if b.config.OnStateChange == nil {
		return
	}
	for _, t := range fired {
		b.config.OnStateChange(b.key, t.from, t.to)
	}
}
