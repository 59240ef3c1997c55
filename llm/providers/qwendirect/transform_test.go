package qwendirect

import (
	"encoding/json"
	"testing"

	"github.com/BaSui01/agentflow/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCompletionPayload_WireShape(t *testing.T) {
	p := buildCompletionPayload("chat-1", "parent-1", "qwen-max", "hi", true)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, true, decoded["stream"])
	assert.Equal(t, true, decoded["incremental_output"])
	assert.Equal(t, "chat-1", decoded["chat_id"])
	assert.Equal(t, "guest", decoded["chat_mode"])
	assert.Equal(t, "parent-1", decoded["parent_id"])

	messages := decoded["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "hi", msg["content"])
	assert.Equal(t, "parent-1", msg["parentId"])
	assert.Equal(t, "parent-1", msg["parent_id"])
	assert.Equal(t, "chat", msg["user_action"])
	assert.NotEmpty(t, msg["fid"])

	extra := msg["extra"].(map[string]any)
	meta := extra["meta"].(map[string]any)
	assert.Equal(t, "t2t", meta["subChatType"])
}

func TestLastUserContent(t *testing.T) {
	req := &llm.ChatRequest{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleAssistant, Content: "reply"},
		{Role: llm.RoleUser, Content: "second"},
	}}
	assert.Equal(t, "second", lastUserContent(req))
}

func TestFirstUserContent(t *testing.T) {
	req := &llm.ChatRequest{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleUser, Content: "second"},
	}}
	assert.Equal(t, "first", firstUserContent(req))
}

func TestToChatUsage_NilIsZero(t *testing.T) {
	u := toChatUsage(nil)
	assert.Equal(t, llm.ChatUsage{}, u)
}
