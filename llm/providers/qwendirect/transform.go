package qwendirect

import (
	"time"

	"github.com/BaSui01/agentflow/llm"
	"github.com/google/uuid"
)

// nativeMessage is a single Qwen chat-completions message object (spec
// §4.3.1). Field names and casing are wire-significant.
type nativeMessage struct {
	FID          string                 `json:"fid"`
	ParentID     string                 `json:"parentId"`
	ParentIDSnake string                `json:"parent_id"`
	ChildrenIDs  []string               `json:"childrenIds"`
	Role         string                 `json:"role"`
	Content      string                 `json:"content"`
	UserAction   string                 `json:"user_action"`
	Files        []any                  `json:"files"`
	Timestamp    int64                  `json:"timestamp"`
	Models       []string               `json:"models"`
	ChatType     string                 `json:"chat_type"`
	SubChatType  string                 `json:"sub_chat_type"`
	FeatureConfig nativeFeatureConfig   `json:"feature_config"`
	Extra        nativeExtra            `json:"extra"`
}

type nativeFeatureConfig struct {
	ThinkingEnabled bool   `json:"thinking_enabled"`
	OutputSchema    string `json:"output_schema"`
}

type nativeExtra struct {
	Meta nativeExtraMeta `json:"meta"`
}

type nativeExtraMeta struct {
	SubChatType string `json:"subChatType"`
}

// completionPayload is the body posted to /api/v2/chat/completions (spec §4.3.1).
type completionPayload struct {
	Stream              bool            `json:"stream"`
	IncrementalOutput   bool            `json:"incremental_output"`
	ChatID              string          `json:"chat_id"`
	ChatMode            string          `json:"chat_mode"`
	Model               string          `json:"model"`
	ParentID            string          `json:"parent_id"`
	Messages            []nativeMessage `json:"messages"`
	Timestamp           int64           `json:"timestamp"`
}

// createChatPayload is the body posted to /api/v2/chats/new (spec §4.3.1).
type createChatPayload struct {
	Title     string   `json:"title"`
	Models    []string `json:"models"`
	ChatMode  string   `json:"chat_mode"`
	ChatType  string   `json:"chat_type"`
	Timestamp int64    `json:"timestamp"`
}

// buildUserMessage constructs the single nativeMessage sent for the newest
// user turn. parentID is "" on the first turn of a conversation.
func buildUserMessage(content, parentID, model string) nativeMessage {
	now := time.Now()
	return nativeMessage{
		FID:           uuid.NewString(),
		ParentID:      parentID,
		ParentIDSnake: parentID,
		ChildrenIDs:   []string{},
		Role:          "user",
		Content:       content,
		UserAction:    "chat",
		Files:         []any{},
		Timestamp:     now.Unix(),
		Models:        []string{model},
		ChatType:      "t2t",
		SubChatType:   "t2t",
		FeatureConfig: nativeFeatureConfig{ThinkingEnabled: false, OutputSchema: "phase"},
		Extra:         nativeExtra{Meta: nativeExtraMeta{SubChatType: "t2t"}},
	}
}

// buildCompletionPayload builds the full completion request body for a
// single-turn send (spec §4.3.1: only the newest user message is sent per
// call, threaded via parent_id).
func buildCompletionPayload(chatID, parentID, model string, userContent string, stream bool) completionPayload {
	return completionPayload{
		Stream:            stream,
		IncrementalOutput: true,
		ChatID:            chatID,
		ChatMode:          "guest",
		Model:             model,
		ParentID:          parentID,
		Messages:          []nativeMessage{buildUserMessage(userContent, parentID, model)},
		Timestamp:         time.Now().Unix(),
	}
}

// buildCreateChatPayload builds the chat-creation request body.
func buildCreateChatPayload(title, model string) createChatPayload {
	if title == "" {
		title = "New Chat"
	}
	return createChatPayload{
		Title:     title,
		Models:    []string{model},
		ChatMode:  "guest",
		ChatType:  "t2t",
		Timestamp: time.Now().UnixMilli(),
	}
}

// lastUserContent extracts the content of the final user-role message in
// req, which is the only message this gateway forwards per turn (the
// upstream chat is already threaded server-side via parent_id).
func lastUserContent(req *llm.ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	if len(req.Messages) > 0 {
		return req.Messages[len(req.Messages)-1].Content
	}
	return ""
}

// --- Upstream → OpenAI response shapes (spec §4.3.2) ---

// nativeStreamEvent is one decoded SSE "data:" line from the completions endpoint.
type nativeStreamEvent struct {
	Response *nativeResponseCreated `json:"response"`
	Choices  []nativeStreamChoice   `json:"choices"`
}

type nativeResponseCreated struct {
	ParentID string `json:"parent_id"`
}

type nativeStreamChoice struct {
	Delta nativeStreamDelta `json:"delta"`
}

type nativeStreamDelta struct {
	Content string `json:"content"`
	Status  string `json:"status"`
	Usage   *nativeUsage `json:"usage"`
}

type nativeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// nativeNonStreamResponse is the full JSON body for a non-streaming completion.
type nativeNonStreamResponse struct {
	ParentID string `json:"parent_id"`
	Choices  []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *nativeUsage `json:"usage"`
}

func toChatUsage(u *nativeUsage) llm.ChatUsage {
	if u == nil {
		return llm.ChatUsage{}
	}
	return llm.ChatUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func stopReason() *string {
	s := "stop"
	return &s
}
