// Copyright (c) AgentCore Authors.
// Licensed under the MIT License.

/*
Package main 提供 agentcore 命令行入口。

# 子命令

  - demo     注册示例处理器并运行脚本化案例，输出结果、技能排名与评分
  - score    对显式给出的八个分量计算评分与分级
  - version  显示构建信息

# 配置

--config 指定 YAML 配置文件，AGENTCORE_* 环境变量覆盖文件中的值；
--env-file 指定的 .env 文件（默认 .env，不存在时忽略）在加载配置之前读入。
日志按 log 配置节构建（级别、json/console、输出路径）。

构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
