// Copyright (c) AgentCore Authors.
// Licensed under the MIT License.

/*
Package types 提供 AgentCore 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 event、recovery、executor、
skills、learning、scoring 等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - TaskInvocation：单次调用的身份信息（case / task / role / 开始时间）
  - ExecutionResult：单次调用的不可变结果（outcome、耗时、重试次数、错误类别）
  - DecisionPoint：追踪中的单个决策（描述、理由、置信度）
  - Error / ErrorCode：结构化错误体系，含 Retryable、Dependency 标记
  - UnregisteredTaskError / InvalidMetricError / InvalidConfidenceError：结构性错误

# 主要能力

  - 错误工具链：NewError / GetErrorCode / IsRetryable
  - 结构性错误均实现 Is，可用 errors.Is 与哨兵错误比较
  - SkillID：由 case id 推导稳定的技能 ID
*/
package types
