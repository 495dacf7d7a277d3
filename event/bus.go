package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Topic 事件主题
type Topic string

const (
	TopicExecuted  Topic = "executed"
	TopicCompleted Topic = "completed"
)

// Handler 事件处理器。返回错误或 panic 都不会中断同一次 Publish 的后续分发。
type Handler func(ctx context.Context, payload any) error

// SubscriptionID 订阅标识，用于取消订阅
type SubscriptionID string

// ErrorObserver 接收处理器失败通知（通常为指标收集器）
type ErrorObserver interface {
	RecordEventHandlerError(topic string)
}

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus 同步的进程内发布/订阅总线。
// 同一主题的处理器按订阅顺序依次执行，跨主题不保证顺序。
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]subscription
	seq      atomic.Int64
	observer ErrorObserver
	logger   *zap.Logger
}

// Option 配置 Bus
type Option func(*Bus)

// WithErrorObserver 设置处理器失败观察者
func WithErrorObserver(o ErrorObserver) Option {
	return func(b *Bus) { b.observer = o }
}

// NewBus 创建事件总线
func NewBus(logger *zap.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		handlers: make(map[Topic][]subscription),
		logger:   logger.With(zap.String("component", "event_bus")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe 订阅主题，返回订阅 ID
func (b *Bus) Subscribe(topic Topic, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := SubscriptionID(fmt.Sprintf("%s-%d", topic, b.seq.Add(1)))
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe 取消订阅，返回是否找到该订阅
func (b *Bus) Unsubscribe(topic Topic, id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[topic]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// 保持剩余订阅的顺序
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, topic)
		} else {
			b.handlers[topic] = next
		}
		return true
	}
	return false
}

// SubscriberCount 返回主题当前订阅数
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

// Publish 同步分发 payload，返回失败的处理器数量。
// 处理器在锁外基于快照执行，因此处理器内部可以安全地订阅或发布。
func (b *Bus) Publish(ctx context.Context, topic Topic, payload any) int {
	b.mu.RLock()
	snapshot := make([]subscription, len(b.handlers[topic]))
	copy(snapshot, b.handlers[topic])
	b.mu.RUnlock()

	failures := 0
	for _, s := range snapshot {
		if err := b.dispatch(ctx, s, payload); err != nil {
			failures++
			b.logger.Error("event handler failed",
				zap.String("topic", string(topic)),
				zap.String("subscription", string(s.id)),
				zap.Error(err),
			)
			if b.observer != nil {
				b.observer.RecordEventHandlerError(string(topic))
			}
		}
	}
	return failures
}

func (b *Bus) dispatch(ctx context.Context, s subscription, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return s.handler(ctx, payload)
}
