// Package executor 提供任务执行器。
//
// 每次 Execute 依次完成：查找处理器、打开追踪会话并记录"选择处理器"决策、
// 通过恢复引擎调用处理器、记录耗时与结果、关闭会话，最后同步发布
// executed 与 completed 事件。任务未注册是唯一会以 error 返回的情况。
package executor
