// Package config 提供 AgentCore 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → AGENTCORE_* 环境变量 的顺序叠加，
// 最后运行验证器。Config.Validate 汇总所有字段错误后一次返回。
package config
