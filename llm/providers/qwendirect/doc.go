// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package qwendirect adapts the gateway's OpenAI wire protocol to Qwen's
native conversational API: per-conversation chat creation, parent_id turn
threading, and credentialed SSE streaming with a distinct chunk format.

Unlike llm/providers/passthrough, this adapter does real translation work in
both directions (transform.go) and owns per-conversation state (session.go)
keyed by the MD5 digest of the conversation's first user message.
*/
package qwendirect
