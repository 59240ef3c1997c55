package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/router"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 聊天接口 Handler
// =============================================================================

// ChatHandler serves POST /v1/chat/completions, synchronous or streamed
// (spec §4.8), delegating the provider decision entirely to the router.
type ChatHandler struct {
	router *router.Router
	logger *zap.Logger
}

// NewChatHandler constructs a ChatHandler backed by r.
func NewChatHandler(r *router.Router, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{router: r, logger: logger}
}

// HandleCompletion serves POST /v1/chat/completions, dispatching to
// streaming or non-streaming based on the request's stream flag (spec §4.8).
func (h *ChatHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatCompletionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	req.ProviderID = resolveProviderField(req.Provider, r)

	if err := validateChatRequest(&req.ChatRequest); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	if req.Stream {
		h.stream(w, r, &req.ChatRequest)
		return
	}
	h.completion(w, r, &req.ChatRequest)
}

func (h *ChatHandler) completion(w http.ResponseWriter, r *http.Request, req *llm.ChatRequest) {
	ctx := r.Context()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := h.router.Completion(ctx, req)
	duration := time.Since(start)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("chat completion",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", duration),
	)
	WriteJSON(w, http.StatusOK, resp)
}

// stream serves the SSE branch of spec §4.8: set event-stream headers,
// flush each chunk as it arrives, never buffer the full response.
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, req *llm.ChatRequest) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, err := h.router.Stream(r.Context(), req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, &llm.Error{Code: llm.ErrServerError, Message: "streaming not supported by this response writer"}, h.logger)
		return
	}

	for chunk := range ch {
		if chunk.Err != nil {
			h.logger.Error("stream error", zap.Error(chunk.Err))
			writeSSEError(w, chunk.Err)
			writeSSEDone(w)
			flusher.Flush()
			return
		}

		w.Write([]byte("data: "))
		_ = json.NewEncoder(w).Encode(chunk)
		// json.Encoder.Encode already appends a trailing newline; SSE wants
		// one blank line as the frame separator.
		w.Write([]byte("\n"))
		flusher.Flush()
	}

	writeSSEDone(w)
	flusher.Flush()
}

// writeSSEError emits a single SSE data line carrying the OpenAI error
// envelope (spec §7 "errors ... emitted as a single SSE data line").
func writeSSEError(w http.ResponseWriter, err *llm.Error) {
	payload, _ := json.Marshal(api.ErrorEnvelope{
		Error: api.ErrorDetail{
			Message: err.Message,
			Type:    router.EnvelopeType(err),
			Code:    string(err.Code),
		},
	})
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}

func writeSSEDone(w http.ResponseWriter) {
	w.Write([]byte("data: [DONE]\n\n"))
}

// validateChatRequest applies the gateway's own request-shape validation
// ahead of routing (spec §4.8's "malformed OpenAI request" → validation_error).
func validateChatRequest(req *llm.ChatRequest) *llm.Error {
	if req.Model == "" {
		return &llm.Error{Code: llm.ErrValidation, Message: "model is required", HTTPStatus: http.StatusBadRequest}
	}
	if len(req.Messages) == 0 {
		return &llm.Error{Code: llm.ErrValidation, Message: "messages cannot be empty", HTTPStatus: http.StatusBadRequest}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return &llm.Error{Code: llm.ErrValidation, Message: "temperature must be between 0 and 2", HTTPStatus: http.StatusBadRequest}
	}
	if req.TopP < 0 || req.TopP > 1 {
		return &llm.Error{Code: llm.ErrValidation, Message: "top_p must be between 0 and 1", HTTPStatus: http.StatusBadRequest}
	}
	return nil
}

// resolveProviderField implements spec §4.7 step 1's "may be a header or
// body field": the body's provider field wins, else the X-Provider-Id header.
func resolveProviderField(bodyField string, r *http.Request) string {
	if bodyField != "" {
		return bodyField
	}
	return r.Header.Get("X-Provider-Id")
}
