// Copyright (c) AgentCore Authors.
// Licensed under the MIT License.

/*
Package recovery 提供错误分类与恢复引擎。

# 分类

Classify 把任意错误映射为五个类别之一：

  - TRANSIENT：超时、限流、服务暂不可用，退避重试
  - PERMISSION：认证、授权失败，立即放弃
  - VALIDATION：输入非法，立即放弃
  - DEPENDENCY：依赖不可用，打开该依赖的熔断器后放弃
  - UNKNOWN：无法识别，按 TRANSIENT 处理

处理器可以用 Transient / Permission / Validation / Dependency 包装错误显式
声明类别，也可以返回带 ErrorCode 的 *types.Error。

# 恢复引擎

Engine.Execute 对一次调用依次执行：检查任务与依赖的熔断器、按策略退避重试、
把最终结果记到熔断器（每次调用只计一次）、在熔断拒绝或重试耗尽时调用降级。
降级成功的结果按成功返回，并标记 FellBack。
*/
package recovery
