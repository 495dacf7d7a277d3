package event

import (
	"time"

	"github.com/BaSui01/agentcore/types"
)

// ExecutedEvent 每次执行结束后发布，不论成功与否
type ExecutedEvent struct {
	InvocationID  string        `json:"invocation_id"`
	CaseID        string        `json:"case_id"`
	TaskName      string        `json:"task_name"`
	Outcome       types.Outcome `json:"outcome"`
	Duration      time.Duration `json:"duration"`
	RetryCount    int           `json:"retry_count"`
	ErrorCategory string        `json:"error_category,omitempty"`
	FellBack      bool          `json:"fell_back,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// CompletedEvent 在 ExecutedEvent 之后发布，额外携带 agent 角色。
// 这是交给技能生成器和学习协调器的唯一交接点。
type CompletedEvent struct {
	ExecutedEvent
	AgentRole string `json:"agent_role"`
}

// Succeeded reports whether the execution succeeded.
func (e ExecutedEvent) Succeeded() bool { return e.Outcome == types.OutcomeSuccess }

// NewExecutedEvent 从执行结果构造事件
func NewExecutedEvent(r *types.ExecutionResult, at time.Time) ExecutedEvent {
	return ExecutedEvent{
		InvocationID:  r.InvocationID,
		CaseID:        r.CaseID,
		TaskName:      r.TaskName,
		Outcome:       r.Outcome,
		Duration:      r.Duration,
		RetryCount:    r.RetryCount,
		ErrorCategory: r.ErrorCategory,
		FellBack:      r.FellBack,
		Timestamp:     at,
	}
}

// AsCompleted 从 payload 中取出 CompletedEvent，兼容值与指针
func AsCompleted(payload any) (CompletedEvent, bool) {
	switch v := payload.(type) {
	case CompletedEvent:
		return v, true
	case *CompletedEvent:
		if v == nil {
			return CompletedEvent{}, false
		}
		return *v, true
	default:
		return CompletedEvent{}, false
	}
}
