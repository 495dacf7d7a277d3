package executor

import (
	"context"

	"github.com/BaSui01/agentcore/internal/ctxkeys"
)

// 处理器可以从传入的 ctx 读取当前调用的标识

// InvocationID 当前调用的 ID
func InvocationID(ctx context.Context) (string, bool) { return ctxkeys.InvocationID(ctx) }

// CaseID 当前调用的案例 ID
func CaseID(ctx context.Context) (string, bool) { return ctxkeys.CaseID(ctx) }

// AgentRole 当前调用的代理角色
func AgentRole(ctx context.Context) (string, bool) { return ctxkeys.AgentRole(ctx) }
