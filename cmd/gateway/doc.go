// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 OpenAI 兼容 LLM 网关的可执行程序入口。

# 概述

cmd/gateway 是网关的可执行入口，提供 HTTP API 服务、数据库迁移、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、结构化日志
（zap）与 Prometheus 指标采集。

# 核心类型

  - Server           — 主服务器，管理 HTTP、Metrics 双端口、provider
    注册表及后台健康检查巡检，并负责优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、migrate（数据库迁移）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、CORS（默认拒绝跨域）、
    RateLimiter（基于 IP 令牌桶）
  - 后台健康巡检：周期性调用 registry.HealthCheckAll 并写入
    llm_provider_healthy 指标
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止健康巡检 → 关闭 HTTP → 关闭 Metrics →
    清空注册表 → 关闭数据库连接池 → 关闭遥测 → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置

鉴权与多租户中间件（JWTAuth、APIKeyAuth、TenantRateLimiter）、配置
热重载未被移植：本网关以单租户、凭证经由 llm/credstore 持久化的
方式运行，详见 DESIGN.md。
*/
package main
