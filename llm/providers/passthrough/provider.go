// Package passthrough implements the mechanical, no-translation provider
// variants: lm_studio, qwen_proxy, and generic OpenAI-compatible backends
// (spec §4.5). Because llm.ChatRequest/ChatResponse/StreamChunk are already
// OpenAI-wire-shaped, forwarding "the body unchanged" is simply marshaling
// the request as-is and decoding the response as-is — no field-by-field
// reconstruction, no vocabulary rewriting.
package passthrough

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentflow/llm"
	"go.uber.org/zap"
)

// Config configures a passthrough Provider.
type Config struct {
	ID      string
	Name    string
	Type    string // lm_studio | qwen_proxy | generic
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Provider forwards chat/completions requests to an OpenAI-compatible base
// URL unchanged (spec §4.5).
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a passthrough Provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 0}, // caller context carries the deadline
		logger: logger.With(zap.String("provider", cfg.ID)),
	}
}

func (p *Provider) ID() string   { return p.cfg.ID }
func (p *Provider) Name() string { return p.cfg.Name }
func (p *Provider) Type() string { return p.cfg.Type }
func (p *Provider) Destroy() error { return nil }

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}

// Completion forwards req's JSON encoding unchanged to <base_url>/chat/completions.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	req.Stream = false
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrValidation, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/chat/completions"), bytes.NewReader(body))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamNetworkError, Message: err.Error(), Retryable: true, Provider: p.cfg.ID}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, mapStatus(resp.StatusCode, string(data), p.cfg.ID)
	}

	var out llm.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamServerError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.cfg.ID}
	}
	return &out, nil
}

// Stream forwards req unchanged with stream:true and relays the upstream's
// SSE frames, decoded and re-encoded as llm.StreamChunk (whose shape is
// identical to the wire frame the upstream already sends).
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrValidation, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/chat/completions"), bytes.NewReader(body))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamNetworkError, Message: err.Error(), Retryable: true, Provider: p.cfg.ID}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, mapStatus(resp.StatusCode, string(data), p.cfg.ID)
	}

	out := make(chan llm.StreamChunk)
	go relaySSE(ctx, resp.Body, p.cfg.ID, out)
	return out, nil
}

// relaySSE parses "data: {...}" lines and decodes each one directly into an
// llm.StreamChunk, stopping at "data: [DONE]". No buffering of the full
// response (spec §9).
func relaySSE(ctx context.Context, body io.ReadCloser, providerID string, out chan<- llm.StreamChunk) {
	defer close(out)
	defer body.Close()

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				select {
				case <-ctx.Done():
				case out <- llm.StreamChunk{Err: &llm.Error{Code: llm.ErrUpstreamNetworkError, Message: err.Error(), Provider: providerID}}:
				}
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return
		}

		var chunk llm.StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case out <- chunk:
		}
	}
}

// ListModels forwards to <base_url>/models unchanged.
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/models"), nil)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrServerError, Message: err.Error()}
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamNetworkError, Message: err.Error(), Retryable: true, Provider: p.cfg.ID}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, mapStatus(resp.StatusCode, string(data), p.cfg.ID)
	}

	var out struct {
		Data []llm.Model `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamServerError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.cfg.ID}
	}
	return out.Data, nil
}

// HealthCheck probes the models endpoint.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	if _, err := p.ListModels(ctx); err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: time.Since(start), Error: err.Error()}, nil
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Since(start)}, nil
}

func mapStatus(status int, body, providerID string) *llm.Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &llm.Error{Code: llm.ErrCredentialsExpired, Message: body, HTTPStatus: status, Provider: providerID}
	case status == http.StatusNotFound:
		return &llm.Error{Code: llm.ErrProviderNotFound, Message: body, HTTPStatus: status, Provider: providerID}
	case status == http.StatusTooManyRequests:
		return &llm.Error{Code: llm.ErrUpstreamRateLimited, Message: body, HTTPStatus: status, Retryable: true, Provider: providerID}
	case status >= 500:
		return &llm.Error{Code: llm.ErrUpstreamServerError, Message: body, HTTPStatus: status, Retryable: true, Provider: providerID}
	default:
		return &llm.Error{Code: llm.ErrUpstreamClient4xx, Message: fmt.Sprintf("upstream returned %d: %s", status, body), HTTPStatus: status, Provider: providerID}
	}
}
