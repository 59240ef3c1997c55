// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config 提供网关的启动期配置管理。

# 概述

config 包负责 Settings 的完整加载流程：默认值 -> YAML 文件 ->
环境变量，外加一层由 llm/catalog 持久化的数据库覆盖
（ApplySettingsOverrides，数据库值优先级最高）。

# 核心结构

  - Settings: 顶层配置聚合，涵盖 Server、Database、Logging、Telemetry
    以及路由使用的 ActiveProviderID
  - Loader: 配置加载器，支持 Builder 模式链式设置
    文件路径、环境变量前缀与自定义验证器

# 主要能力

  - 多源加载: YAML 文件、环境变量（GATEWAY_ 前缀）、默认值
  - 数据库覆盖: ApplySettingsOverrides 在启动时读取 settings 表，
    逐项覆盖 server.port/host、request_timeout、logging.* 与
    active_provider
  - 配置验证: Settings.Validate 做基础一致性检查

# 使用示例

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("GATEWAY").
		Load()
*/
package config
