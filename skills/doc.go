// Copyright (c) AgentCore Authors.
// Licensed under the MIT License.

/*
Package skills 把成功的执行沉淀为可复用的技能。

# 生成

Generator 订阅 completed 事件。某个 case 第一次成功时，以
types.SkillID(caseID) 为 ID 构建 Skill（元数据 + Markdown 正文）并交给
Store 持久化；同一 case 的后续成功与所有失败都不会产生新技能。
并发的同 ID 生成请求通过 singleflight 合并。

# 存储

  - MemoryStore：进程内
  - FileStore：<root>/<skill_id>/SKILL.json + ARTIFACT.md
  - RedisStore：元数据、正文与索引集合，SETNX 作为重复保存守卫

NewStore 按 StoreConfig.Type 选择实现。
*/
package skills
