// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数、可控时钟与脚本化处理器
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	clk := testutil.NewManualClock(time.Now())
//	h := testutil.NewScriptedHandler(errTransient, errTransient)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// ⏱️ 可控时钟
// =============================================================================

// ManualClock 手动推进的时钟，Sleep 不真正阻塞而是推进时间并记录延迟
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewManualClock 创建从 start 开始的手动时钟
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now 返回当前时间
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 推进时间
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleep 记录延迟并推进时间
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Sleeps 返回所有记录的延迟
func (c *ManualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// =============================================================================
// 🎭 脚本化处理器
// =============================================================================

// ScriptedHandler 依次返回预设错误，耗尽后返回 Output
type ScriptedHandler struct {
	mu     sync.Mutex
	errs   []error
	always error
	calls  int
	Output any
}

// NewScriptedHandler 创建处理器，前 len(errs) 次调用依次失败
func NewScriptedHandler(errs ...error) *ScriptedHandler {
	return &ScriptedHandler{errs: errs, Output: "ok"}
}

// AlwaysFailing 创建永远返回 err 的处理器
func AlwaysFailing(err error) *ScriptedHandler {
	return &ScriptedHandler{always: err}
}

// Handle 满足 executor.Handler 的函数签名
func (h *ScriptedHandler) Handle(_ context.Context, _ any) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := h.calls
	h.calls++
	if h.always != nil {
		return nil, h.always
	}
	if idx < len(h.errs) && h.errs[idx] != nil {
		return nil, h.errs[idx]
	}
	return h.Output, nil
}

// Calls 返回调用次数
func (h *ScriptedHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// =============================================================================
// 🔧 数据工具
// =============================================================================

// MustJSON 序列化为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
