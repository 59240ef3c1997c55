// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供网关 HTTP API 的请求处理器实现。

# 概述

handlers 包实现了网关全部 HTTP 端点的请求处理逻辑：聊天补全（同步/SSE 流式）、
模型列表、健康检查、根路径信息，以及统一的 OpenAI 风格错误响应。所有 Handler
均遵循标准 net/http 接口，请求的路由决策完全委托给 router.Router。

# 核心类型

  - ChatHandler    — POST /v1/chat/completions，支持同步与 SSE 流式响应
  - ModelsHandler  — GET /v1/models[?provider=<id>]
  - HealthHandler  — GET /health、GET /
  - ResponseWriter — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - WriteJSON / WriteError：统一 JSON 输出，错误响应为 OpenAI 风格 {error:{message,type,code}}
  - 请求验证：DecodeJSONBody（1 MB 限制）、ValidateContentType
  - router.EnvelopeType / router.HTTPStatus：错误码到信封类型与 HTTP 状态码的映射
  - SSE 流式输出：ChatHandler 内部的 stream 分支，逐块 flush，无完整响应缓冲
*/
package handlers
