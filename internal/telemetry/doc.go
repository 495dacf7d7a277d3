// Package telemetry 为一个 agentic.System 创建独占的 OpenTelemetry
// TracerProvider 与 MeterProvider（OTLP gRPC 导出，也可注入导出器）。
//
// 默认不修改 otel 全局实例；WithGlobal 或 telemetry.register_global
// 打开后才注册全局 provider 与 W3C 传播器。遥测禁用时返回 noop 实现，
// 不连接任何外部服务。
package telemetry
