// Copyright 2026 BaSui01. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

// Package agentic 组装运行时上下文对象 System。
//
// System 在创建时一次性构建 logger、事件总线、行为追踪器、恢复引擎、
// 执行器、技能存储与生成器、学习协调器和版本评分器，之后通过引用
// 传递给各组件；Close 负责拆除。包内没有全局可变状态。
//
// 基本用法:
//
//	sys, err := agentic.New(config.DefaultConfig(), agentic.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer sys.Close(ctx)
//
//	sys.RegisterHandler("price_trend", handler)
//	result, err := sys.ExecuteCase(ctx, "case-1", "price_trend", "analyst", input)
package agentic
