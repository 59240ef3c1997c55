// Package qwendirect implements the Qwen-direct provider (spec §4.5): the
// one adapter that speaks the upstream's native conversational protocol
// instead of forwarding an OpenAI-shaped body unchanged. It owns a
// SessionManager mapping each conversation to its upstream chat_id/parent_id
// thread.
package qwendirect

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/llm/credstore"
	"go.uber.org/zap"
)

// Config configures a Provider instance.
type Config struct {
	ID           string
	Name         string
	BaseURL      string
	DefaultModel string
}

// Provider is the Qwen-direct llm.Provider implementation.
type Provider struct {
	id           string
	name         string
	defaultModel string
	client       *Client
	sessions     *SessionManager
	logger       *zap.Logger
}

// New constructs a Qwen-direct provider and starts its session sweep goroutine.
func New(cfg Config, creds *credstore.Store, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		id:           cfg.ID,
		name:         cfg.Name,
		defaultModel: cfg.DefaultModel,
		client:       NewClient(cfg.BaseURL, creds, logger),
		sessions:     NewSessionManager(),
		logger:       logger.With(zap.String("provider", cfg.ID)),
	}
	p.sessions.StartCleanup()
	return p
}

func (p *Provider) ID() string   { return p.id }
func (p *Provider) Name() string { return p.name }
func (p *Provider) Type() string { return "qwen_direct" }

// Destroy stops the session sweep goroutine and releases every session
// (spec §5 "session-sweep coupled to provider lifetime").
func (p *Provider) Destroy() error {
	p.sessions.Shutdown()
	return nil
}

func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.client.HealthCheck(ctx)
}

func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	return p.client.ListModels(ctx)
}

func (p *Provider) resolveModel(req *llm.ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func firstUserContent(req *llm.ChatRequest) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	if len(req.Messages) > 0 {
		return req.Messages[0].Content
	}
	return ""
}

// resolveSession implements spec §4.5 steps 1-4: validate credentials
// (deferred to the client's own header check), resolve the model, derive
// the conversation id as md5(first_user_msg), then look up or create the
// session + upstream chat.
func (p *Provider) resolveSession(ctx context.Context, req *llm.ChatRequest, model string) (*Session, error) {
	convID, err := GenerateSessionID(firstUserContent(req))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrValidation, Message: err.Error(), HTTPStatus: 400}
	}

	if sess, ok := p.sessions.Get(convID); ok {
		return sess, nil
	}

	chatID, err := p.client.CreateChat(ctx, chatTitle(convID), model)
	if err != nil {
		return nil, err
	}
	return p.sessions.Create(convID, chatID), nil
}

// chatTitle builds spec §4.5 step 4's create-chat title: "Conversation "
// followed by the first 8 hex characters of the conversation id.
func chatTitle(convID string) string {
	if len(convID) > 8 {
		convID = convID[:8]
	}
	return "Conversation " + convID
}

// Completion performs a non-streaming chat turn (spec §4.5/§4.3.2 non-streaming).
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := p.resolveModel(req)
	sess, err := p.resolveSession(ctx, req, model)
	if err != nil {
		return nil, err
	}

	content := lastUserContent(req)
	resp, err := p.client.SendMessage(ctx, sess.NativeChatID, sess.ParentID, model, content)
	if err != nil {
		if llmErr, ok := err.(*llm.Error); ok && llmErr.Code == llm.ErrSessionMissing {
			return nil, p.recreateAndRetryCompletion(ctx, sess, req, model, content)
		}
		return nil, err
	}

	p.sessions.UpdateParentID(sess.SessionID, resp.ParentID)

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return &llm.ChatResponse{
		ID:      chatCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: text},
		}},
		Usage: toChatUsage(resp.Usage),
	}, nil
}

// chatCompletionID builds the OpenAI-shaped completion id (spec §4.3.2
// "chatcmpl-<ms>").
func chatCompletionID() string {
	return "chatcmpl-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// recreateAndRetryCompletion implements spec §7's single re-create attempt
// on a session_missing error: drop the stale session, create a fresh
// upstream chat, and retry exactly once.
func (p *Provider) recreateAndRetryCompletion(ctx context.Context, stale *Session, req *llm.ChatRequest, model, content string) (*llm.ChatResponse, error) {
	p.sessions.Delete(stale.SessionID)
	chatID, err := p.client.CreateChat(ctx, chatTitle(stale.SessionID), model)
	if err != nil {
		return nil, err
	}
	sess := p.sessions.Create(stale.SessionID, chatID)

	resp, err := p.client.SendMessage(ctx, sess.NativeChatID, "", model, content)
	if err != nil {
		return nil, err
	}
	p.sessions.UpdateParentID(sess.SessionID, resp.ParentID)

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return &llm.ChatResponse{
		ID:      chatCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []llm.ChatChoice{{Index: 0, FinishReason: "stop", Message: llm.Message{Role: llm.RoleAssistant, Content: text}}},
		Usage:   toChatUsage(resp.Usage),
	}, nil
}

// Stream performs a streaming chat turn, translating the upstream's SSE
// frames into OpenAI chat-completion.chunk frames (spec §4.3.2 streaming).
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	model := p.resolveModel(req)
	sess, err := p.resolveSession(ctx, req, model)
	if err != nil {
		return nil, err
	}

	content := lastUserContent(req)
	body, err := p.client.SendMessageStream(ctx, sess.NativeChatID, sess.ParentID, model, content)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go p.pumpStream(ctx, body, sess, model, out)
	return out, nil
}

// pumpStream reads the upstream SSE body line by line, never buffering the
// full response (spec §9 "no full-response buffering"), and emits OpenAI
// chunks. It captures the first response.created's parent_id but does not
// forward that event; the terminal "finished" status produces the closing
// chunk (with usage) followed by the channel close, which the HTTP layer
// renders as the `[DONE]` sentinel.
func (p *Provider) pumpStream(ctx context.Context, body io.ReadCloser, sess *Session, model string, out chan<- llm.StreamChunk) {
	defer close(out)
	defer body.Close()

	id := chatCompletionID()
	reader := bufio.NewReader(body)
	var capturedParentID string
	var observedAnyEvent bool

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				select {
				case <-ctx.Done():
				case out <- llm.StreamChunk{Err: &llm.Error{Code: llm.ErrUpstreamNetworkError, Message: err.Error(), Retryable: false}}:
				}
			}
			break
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var evt nativeStreamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			continue // malformed frame, skip rather than abort an otherwise healthy stream
		}
		observedAnyEvent = true

		if evt.Response != nil && evt.Response.ParentID != "" {
			capturedParentID = evt.Response.ParentID
			continue // response.created is captured, never forwarded (spec §4.3.2)
		}

		for _, choice := range evt.Choices {
			if choice.Delta.Status == "finished" {
				select {
				case <-ctx.Done():
					return
				case out <- llm.StreamChunk{
					ID: id, Object: "chat.completion.chunk", Created: time.Now().Unix(), Model: model,
					Delta: llm.ChunkDelta{}, FinishReason: stopReason(), Usage: usagePtr(choice.Delta.Usage),
				}:
				}
				if capturedParentID != "" {
					p.sessions.UpdateParentID(sess.SessionID, capturedParentID)
				}
				return
			}
			if choice.Delta.Content == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- llm.StreamChunk{
				ID: id, Object: "chat.completion.chunk", Created: time.Now().Unix(), Model: model,
				Delta: llm.ChunkDelta{Role: llm.RoleAssistant, Content: choice.Delta.Content},
				FinishReason: nil,
			}:
			}
		}
	}

	// The stream ended without ever observing a "finished" status (client
	// disconnect or upstream closed early); only persist the parent_id if
	// response.created was actually observed before cancellation (spec §5).
	if observedAnyEvent && capturedParentID != "" {
		p.sessions.UpdateParentID(sess.SessionID, capturedParentID)
	}
}

func usagePtr(u *nativeUsage) *llm.ChatUsage {
	if u == nil {
		return nil
	}
	c := toChatUsage(u)
	return &c
}
