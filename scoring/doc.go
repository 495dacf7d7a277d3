// Package scoring 计算会话版本评分、分级并维护评分历史。
//
// 评分是八个归一化分量的加权和，分级阈值固定。动量检查只做报告：
// 调用方根据 Decide 的结果选择 Stabilize（冻结当前分级）或
// Compound（之后的贡献按 CompoundWeight 加权），Scorer 本身从不改写分数。
package scoring
