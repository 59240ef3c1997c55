package qwendirect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/llm/credstore"
	"github.com/BaSui01/agentflow/llm/retry"
	"go.uber.org/zap"
)

const (
	defaultBaseURL     = "https://chat.qwen.ai"
	createChatPath     = "/api/v2/chats/new"
	completionsPath    = "/api/v2/chat/completions"
	listModelsPath     = "/api/models"
	initiationTimeout  = 30 * time.Second
)

// Client is the Qwen-native HTTP client (spec §4.4). It attaches
// credentials on every call and applies the gateway's retry policy with
// Qwen's status-code mapping.
type Client struct {
	baseURL string
	http    *http.Client
	creds   *credstore.Store
	retry   retry.Retryer
	logger  *zap.Logger
}

// NewClient builds a Client against baseURL (defaulting to the production
// Qwen endpoint when empty).
func NewClient(baseURL string, creds *credstore.Store, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 0}, // per-call contexts carry their own deadlines
		creds:   creds,
		retry:   retry.NewBackoffRetryer(retry.QwenRetryPolicy(), logger),
		logger:  logger.With(zap.String("component", "qwendirect_client")),
	}
}

func (c *Client) headers(ctx context.Context) (map[string]string, error) {
	h, err := c.creds.Headers(ctx)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: "failed reading credentials: " + err.Error(), Retryable: false}
	}
	if len(h) == 0 {
		return nil, &llm.Error{Code: llm.ErrCredentialsMissing, Message: "Qwen credentials not found or expired"}
	}
	now := time.Now().Unix()
	cred, err := c.creds.Get(ctx)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}
	if cred == nil || !cred.IsValid(now) {
		return nil, &llm.Error{Code: llm.ErrCredentialsExpired, Message: "qwen credentials expired", HTTPStatus: http.StatusUnauthorized}
	}
	return h, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	return c.retry.Do(ctx, func() error {
		headers, err := c.headers(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if body != nil {
			payload, merr := json.Marshal(body)
			if merr != nil {
				return &llm.Error{Code: llm.ErrServerError, Message: merr.Error()}
			}
			reader = bytes.NewReader(payload)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
		}
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return mapNetworkError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(resp.Body)
			return mapStatusError(resp.StatusCode, string(data))
		}

		if out != nil {
			if derr := json.NewDecoder(resp.Body).Decode(out); derr != nil {
				return &llm.Error{
					Code: llm.ErrUpstreamServerError, Message: "decode failed: " + derr.Error(),
					HTTPStatus: http.StatusBadGateway, Retryable: true,
				}
			}
		}
		return nil
	})
}

// mapStatusError implements spec §4.4's exact status table: 401/403 are
// credential errors (non-retryable), 404 is a terminal chat-not-found
// (non-retryable), 429 is rate limiting (retryable), 5xx is a server error
// (retryable).
func mapStatusError(status int, body string) *llm.Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &llm.Error{Code: llm.ErrCredentialsExpired, Message: body, HTTPStatus: status, Retryable: false}
	case status == http.StatusNotFound:
		return &llm.Error{Code: llm.ErrSessionMissing, Message: body, HTTPStatus: status, Retryable: false}
	case status == http.StatusTooManyRequests:
		return &llm.Error{Code: llm.ErrUpstreamRateLimited, Message: body, HTTPStatus: status, Retryable: true}
	case status >= 500:
		return &llm.Error{Code: llm.ErrUpstreamServerError, Message: body, HTTPStatus: status, Retryable: true}
	default:
		return &llm.Error{Code: llm.ErrUpstreamClient4xx, Message: body, HTTPStatus: status, Retryable: false}
	}
}

// mapNetworkError classifies a transport-level error (connection refused,
// timeout, host not found) as retryable per spec §4.4.
func mapNetworkError(err error) *llm.Error {
	var netErr net.Error
	retryable := errors.As(err, &netErr) || isConnRefused(err) || isDNSError(err)
	return &llm.Error{
		Code:       llm.ErrUpstreamNetworkError,
		Message:    err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  retryable,
	}
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// CreateChat creates a new native chat and returns its id (spec §4.4,
// 30s initiation timeout).
func (c *Client) CreateChat(ctx context.Context, title, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, initiationTimeout)
	defer cancel()

	payload := buildCreateChatPayload(title, model)
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, createChatPath, payload, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", &llm.Error{Code: llm.ErrUpstreamServerError, Message: "create_chat response missing data.id"}
	}
	return out.Data.ID, nil
}

// SendMessageStream posts a single turn and returns the raw SSE body for
// the caller to parse (spec §4.3.2 streaming mode). The caller owns closing
// the returned body.
func (c *Client) SendMessageStream(ctx context.Context, chatID, parentID, model, content string) (io.ReadCloser, error) {
	headers, err := c.headers(ctx)
	if err != nil {
		return nil, err
	}
	payload := buildCompletionPayload(chatID, parentID, model, content, true)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}

	initCtx, cancel := context.WithTimeout(ctx, initiationTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(initCtx, http.MethodPost,
		fmt.Sprintf("%s%s?chat_id=%s", c.baseURL, completionsPath, chatID), bytes.NewReader(body))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	httpReq = httpReq.WithContext(ctx) // the streaming body itself is unbounded (spec §5)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, mapStatusError(resp.StatusCode, string(data))
	}
	return resp.Body, nil
}

// SendMessage posts a single non-streaming turn and decodes the full
// response body (spec §4.3.2 non-streaming mode).
func (c *Client) SendMessage(ctx context.Context, chatID, parentID, model, content string) (*nativeNonStreamResponse, error) {
	var out nativeNonStreamResponse
	path := fmt.Sprintf("%s?chat_id=%s", completionsPath, chatID)
	payload := buildCompletionPayload(chatID, parentID, model, content, false)
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListModels returns the upstream's advertised model list.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	var out struct {
		Data []llm.Model `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, listModelsPath, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// HealthCheck short-circuits false when credentials are absent/invalid,
// otherwise probes ListModels (spec §4.4).
func (c *Client) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	if _, err := c.headers(ctx); err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: time.Since(start), Error: err.Error()}, nil
	}
	if _, err := c.ListModels(ctx); err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: time.Since(start), Error: err.Error()}, nil
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Since(start)}, nil
}
