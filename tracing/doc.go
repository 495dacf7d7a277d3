// Package tracing 记录每次任务执行的行为轨迹。
//
// 每次执行对应一个 Session（同时是一个 OpenTelemetry span），会话内的决策点
// 以 span event 的形式附带描述、理由与置信度。Tracer 保留有限长度的
// {耗时, 成功} 历史，用 nearest-rank 计算 P50 / P95，并维护滚动成功率与
// 全部决策的平均置信度。
package tracing
