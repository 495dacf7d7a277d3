// 版权所有 2024 AgentCore Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的核心指标采集能力，覆盖
执行、熔断、事件总线、技能学习与版本评分五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用
promauto.With(registerer) 注册到调用方提供的 Registry（nil 时使用
默认 Registry），测试可以为每个用例创建独立 Registry 避免重复注册。

# 主要能力

  - 执行指标：执行总数（task/outcome）、执行耗时、重试与降级计数。
  - 熔断器指标：状态 Gauge、状态转换计数、快速失败拒绝计数。
  - 事件总线指标：处理器失败计数，按 topic 分组。
  - 技能与学习指标：技能生成数、学习检查点数、查询缓存命中/未命中。
  - 评分指标：最新版本评分 Gauge、动量违背计数。
*/
package metrics
