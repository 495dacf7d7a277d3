// 版权所有 2024 AgentCore Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的存取能力，供 redis 技能存储使用。

# 概述

本包封装 go-redis 客户端，Manager 负责连接生命周期（初始化时 Ping、
Close 安全释放），并为所有键统一加上 KeyPrefix。

# 核心类型

  - Manager：持有 Redis 客户端，提供 Get/Set/SetNX/Delete/Exists、
    GetJSON/SetJSON 以及 SAdd/SMembers 集合操作。
  - Config：地址、密码、数据库、键前缀、默认 TTL 与连接池参数。

# 错误语义

  - ErrCacheMiss / IsCacheMiss：键不存在。
  - ErrClosed：管理器关闭后的任何操作。
*/
package cache
