// Package ctxkeys 定义执行期间写入 context 的键。
// This package is internal and should not be imported by external projects.
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	invocationIDKey contextKey = "invocation_id"
	caseIDKey       contextKey = "case_id"
	agentRoleKey    contextKey = "agent_role"
)

// WithInvocationID 设置 InvocationID
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDKey, id)
}

// InvocationID 获取 InvocationID
func InvocationID(ctx context.Context) (string, bool) {
	return lookup(ctx, invocationIDKey)
}

// WithCaseID 设置 CaseID
func WithCaseID(ctx context.Context, caseID string) context.Context {
	return context.WithValue(ctx, caseIDKey, caseID)
}

// CaseID 获取 CaseID
func CaseID(ctx context.Context) (string, bool) {
	return lookup(ctx, caseIDKey)
}

// WithAgentRole 设置 AgentRole
func WithAgentRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, agentRoleKey, role)
}

// AgentRole 获取 AgentRole
func AgentRole(ctx context.Context) (string, bool) {
	return lookup(ctx, agentRoleKey)
}

func lookup(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
