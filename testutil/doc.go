// Copyright 2026 AgentCore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 AgentCore 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，自动注册 Cleanup 防止泄漏
  - 可控时钟: ManualClock 实现 clock.Clock，Sleep 只推进时间并记录延迟，
    用于验证退避间隔与熔断恢复超时
  - 脚本化处理器: ScriptedHandler 按预设顺序失败后成功，并统计调用次数
  - 数据工具: MustJSON

# 使用示例

	clk := testutil.NewManualClock(time.Unix(0, 0))
	h := testutil.NewScriptedHandler(recovery.Transient(errBoom))
	sys.RegisterHandler("flaky", h.Handle)
*/
package testutil
