// Package learning 维护每个技能的使用统计并给出排名。
//
// Coordinator 订阅 completed 事件，对成功与失败都更新
// {使用次数, 成功次数, 平均耗时}；每个技能有独立的锁。
// 每 CheckpointInterval 次更新输出一次检查点（日志、计数器与可选回调），
// 检查点本身不改变状态。Lookup 通过 TTL + LRU 缓存读取统计，
// 命中率作为技能检索得分。
package learning
