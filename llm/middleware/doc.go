// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 middleware 提供请求发送给上游模型服务之前的改写器链机制。

# 核心接口

  - RequestRewriter：请求改写器接口，包含 Rewrite 与 Name 方法。
  - RewriterChain：改写器链，按顺序执行多个 RequestRewriter，任一
    失败即中断并返回错误。

# 主要能力

  - EmptyToolsCleaner：当 Tools 为空时清除 ToolChoice，避免上游 API
    因"空 tools 数组配合 tool_choice"的组合返回 400。

router.Router 在 Completion/Stream 派发前对每个请求执行这条链。
*/
package middleware
