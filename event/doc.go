// Package event 提供同步的进程内事件总线。
//
// Publish 在调用方 goroutine 内按订阅顺序执行同一主题的全部处理器；
// 单个处理器失败（返回错误或 panic）只会被记录，不会中断其余处理器，
// 也不会传播给发布者。执行器发布的 executed / completed 两个主题是
// 技能生成器与学习协调器的唯一输入。
package event
