// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types provides the gateway's shared wire-level value types.

# Overview

types is the lowest-level shared package: it depends on nothing else in the
module and is imported by llm (and llm/retry); llm re-exports its types as
aliases, so router and api reach them through llm.

# Core types

  - Message, Role, ToolCall, ImageContent — conversation turn shape
  - ToolSchema, ToolResult                — function-calling schema/result passthrough
  - Error, ErrorCode                      — structured error with HTTP status, retryable, provider
  - TokenUsage                            — prompt/completion/total token accounting
*/
package types
