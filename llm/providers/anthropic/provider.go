package claude

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

	"github.com/localrouter/localrouter/internal/tlsutil"
	"github.com/localrouter/localrouter/llm"
	"github.com/localrouter/localrouter/llm/providers"
	"go.uber.org/zap"
)

const defaultAnthropicVersion = "2023-06-01"
const defaultBaseURL = "https://api.anthropic.com"
const defaultModel = "claude-opus-4-6"

// ClaudeProvider implements llm.Provider for the Anthropic Messages API.
// It does not embed the OpenAI-compatible base: auth, message shape, and
// streaming events are all independently shaped.
type ClaudeProvider struct {
	cfg    providers.ClaudeConfig
	client *http.Client
	logger *zap.Logger
}

// NewClaudeProvider builds a ClaudeProvider from config.
func NewClaudeProvider(cfg providers.ClaudeConfig, logger *zap.Logger) *ClaudeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = defaultAnthropicVersion
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaudeProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("component", "anthropic")),
	}
}

func (p *ClaudeProvider) Name() string { return "anthropic" }

func (p *ClaudeProvider) SupportsNativeFunctionCalling() bool { return true }

func (p *ClaudeProvider) buildHeaders(req *http.Request) {
	apiKey := p.cfg.APIKey
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", p.cfg.AnthropicVersion)
	req.Header.Set("content-type", "application/json")
}

func (p *ClaudeProvider) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(p.cfg.BaseURL, "/"), path)
}

func (p *ClaudeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("authentication failed")
	case resp.StatusCode >= 500:
		return &llm.HealthStatus{Healthy: false, Latency: latency, ErrorRate: 1}, fmt.Errorf("degraded: status %d", resp.StatusCode)
	default:
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
}

func (p *ClaudeProvider) ListModels(ctx context.Context) ([]llm.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/v1/models"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var out struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
			CreatedAt   string `json:"created_at"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name()}
	}

	models := make([]llm.Model, 0, len(out.Data))
	for _, m := range out.Data {
		if m.ID == "" {
			continue
		}
		models = append(models, llm.Model{
			ID:          m.ID,
			Object:      "model",
			OwnedBy:     "anthropic",
			DisplayName: m.DisplayName,
			Provider:    p.Name(),
			Capabilities: []llm.ModelCapability{llm.CapabilityChat, llm.CapabilityFunctionCalling, llm.CapabilityVision},
		})
	}
	return models, nil
}

// --- wire types ---

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	CacheCtl  *cacheControl   `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string                  `json:"model"`
	System      []anthropicContentBlock `json:"system,omitempty"`
	Messages    []anthropicMessage      `json:"messages"`
	MaxTokens   int                     `json:"max_tokens"`
	Temperature float32                 `json:"temperature,omitempty"`
	TopP        float32                 `json:"top_p,omitempty"`
	TopK        int                     `json:"top_k,omitempty"`
	StopSeqs    []string                `json:"stop_sequences,omitempty"`
	Tools       []anthropicTool         `json:"tools,omitempty"`
	Stream      bool                    `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

// toAnthropicMessages splits the system message out to the top-level
// field and converts the remainder to content-block form, applying the
// prompt-caching heuristic when requested: cache the leading system
// message, and in conversations of 3+ messages cache through the
// second-to-last message.
func toAnthropicMessages(msgs []llm.Message, cachingEnabled bool) ([]anthropicContentBlock, []anthropicMessage) {
	var system []anthropicContentBlock
	var out []anthropicMessage

	convBreakpoint := -1
	if cachingEnabled && len(msgs) >= 3 {
		convBreakpoint = len(msgs) - 2
	}

	for i, m := range msgs {
		if m.Role == llm.RoleSystem {
			block := anthropicContentBlock{Type: "text", Text: m.Content}
			if cachingEnabled {
				block.CacheCtl = &cacheControl{Type: "ephemeral"}
			}
			system = append(system, block)
			continue
		}

		role := string(m.Role)
		if m.Role == llm.RoleTool {
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
			continue
		}

		var blocks []anthropicContentBlock
		if m.Content != "" {
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, anthropicContentBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: tc.Arguments,
			})
		}
		if i == convBreakpoint && len(blocks) > 0 {
			blocks[len(blocks)-1].CacheCtl = &cacheControl{Type: "ephemeral"}
		}
		out = append(out, anthropicMessage{Role: role, Content: blocks})
	}
	return system, out
}

func toAnthropicTools(tools []llm.ToolSchema) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Parameters, &schema)
		out = append(out, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return out
}

func fromAnthropicResponse(ar anthropicResponse, provider string) *llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant}
	var textParts []string
	for _, b := range ar.Content {
		switch b.Type {
		case "text":
			textParts = append(textParts, b.Text)
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: b.ID, Name: b.Name, Arguments: b.Input})
		}
	}
	msg.Content = strings.Join(textParts, "")

	finish := mapStopReason(ar.StopReason)
	return &llm.ChatResponse{
		ID:       ar.ID,
		Provider: provider,
		Model:    ar.Model,
		Choices:  []llm.ChatChoice{{Index: 0, FinishReason: finish, Message: msg}},
		Usage: llm.ChatUsage{
			PromptTokens:             ar.Usage.InputTokens,
			CompletionTokens:         ar.Usage.OutputTokens,
			TotalTokens:              ar.Usage.InputTokens + ar.Usage.OutputTokens,
			CacheCreationInputTokens: ar.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     ar.Usage.CacheReadInputTokens,
		},
		CreatedAt: time.Now(),
	}
}

func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}

func (p *ClaudeProvider) cachingEnabled(req *llm.ChatRequest) bool {
	if req.Extensions == nil {
		return false
	}
	v, ok := req.Extensions["prompt_caching"].(bool)
	return ok && v
}

func (p *ClaudeProvider) buildRequest(req *llm.ChatRequest, stream bool) anthropicRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	system, messages := toAnthropicMessages(req.Messages, p.cachingEnabled(req))
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return anthropicRequest{
		Model:       model,
		System:      system,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		StopSeqs:    req.Stop,
		Tools:       toAnthropicTools(req.Tools),
		Stream:      stream,
	}
}

func (p *ClaudeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := p.buildRequest(req, false)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v1/messages"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var ar anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name()}
	}
	return fromAnthropicResponse(ar, p.Name()), nil
}

func (p *ClaudeProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	body := p.buildRequest(req, true)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v1/messages"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name()}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return streamAnthropicSSE(ctx, resp.Body, req.Model, p.Name()), nil
}

// streamAnthropicSSE parses Anthropic's typed SSE event stream. Events are
// separated by blank lines; each event has an "event: <type>" line and a
// "data: <json>" line. Reads are buffered across transport chunks by
// bufio.Reader, which accumulates bytes until the requested delimiter
// appears regardless of how many underlying Read calls that takes.
func streamAnthropicSSE(ctx context.Context, body io.ReadCloser, model, providerName string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)

		reader := bufio.NewReader(body)
		var eventType string
		toolCallIdx := map[int]string{} // content block index -> tool call id

		emit := func(c llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- c:
				return true
			}
		}

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					emit(llm.StreamChunk{Err: &llm.Error{Code: llm.ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName}})
				}
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			switch eventType {
			case "content_block_delta":
				var ev struct {
					Index int `json:"index"`
					Delta struct {
						Type        string `json:"type"`
						Text        string `json:"text"`
						PartialJSON string `json:"partial_json"`
					} `json:"delta"`
				}
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					continue
				}
				delta := llm.Message{Role: llm.RoleAssistant}
				if ev.Delta.Type == "text_delta" {
					delta.Content = ev.Delta.Text
				} else if ev.Delta.Type == "input_json_delta" {
					if id, ok := toolCallIdx[ev.Index]; ok {
						delta.ToolCalls = []llm.ToolCall{{ID: id, Arguments: json.RawMessage(ev.Delta.PartialJSON)}}
					}
				}
				if !emit(llm.StreamChunk{Model: model, Provider: providerName, Index: ev.Index, Delta: delta}) {
					return
				}
			case "content_block_start":
				var ev struct {
					Index        int `json:"index"`
					ContentBlock struct {
						Type string `json:"type"`
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"content_block"`
				}
				if err := json.Unmarshal([]byte(data), &ev); err == nil && ev.ContentBlock.Type == "tool_use" {
					toolCallIdx[ev.Index] = ev.ContentBlock.ID
					if !emit(llm.StreamChunk{Model: model, Provider: providerName, Index: ev.Index, Delta: llm.Message{
						Role:      llm.RoleAssistant,
						ToolCalls: []llm.ToolCall{{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}},
					}}) {
						continue
					}
					return
				}
			case "message_delta":
				var ev struct {
					Delta struct {
						StopReason string `json:"stop_reason"`
					} `json:"delta"`
					Usage anthropicUsage `json:"usage"`
				}
				if err := json.Unmarshal([]byte(data), &ev); err == nil && ev.Delta.StopReason != "" {
					usage := llm.ChatUsage{
						CompletionTokens:         ev.Usage.OutputTokens,
						CacheCreationInputTokens: ev.Usage.CacheCreationInputTokens,
						CacheReadInputTokens:     ev.Usage.CacheReadInputTokens,
					}
					if !emit(llm.StreamChunk{
						Model: model, Provider: providerName,
						FinishReason: mapStopReason(ev.Delta.StopReason),
						Delta:        llm.Message{Role: llm.RoleAssistant},
						Usage:        &usage,
					}) {
						return
					}
				}
			case "message_stop":
				return
			case "error":
				emit(llm.StreamChunk{Err: &llm.Error{Code: llm.ErrUpstreamError, Message: data, HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName}})
				return
			}
		}
	}()
	return ch
}

// Pricing returns zero, unknown pricing; callers wire a price sheet via
// config when exact per-token cost is required.
func (p *ClaudeProvider) Pricing(model string) llm.Pricing { return llm.Pricing{Known: false} }

// Embed is unsupported: Anthropic does not offer an embeddings endpoint.
func (p *ClaudeProvider) Embed(ctx context.Context, req *llm.EmbedRequest) (*llm.EmbedResponse, error) {
	return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: "anthropic does not support embeddings", Provider: p.Name()}
}

// GenerateImage is unsupported: Anthropic does not offer image generation.
func (p *ClaudeProvider) GenerateImage(ctx context.Context, req *llm.ImageRequest) (*llm.ImageResponse, error) {
	return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: "anthropic does not support image generation", Provider: p.Name()}
}
