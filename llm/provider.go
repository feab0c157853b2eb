// Package llm provides unified LLM provider abstraction and routing.
package llm

import (
	"context"
	"time"

	"github.com/localrouter/localrouter/types"
)

// Re-export types for backward compatibility during migration.
// These will be removed after full migration.
type (
	Message      = types.Message
	Role         = types.Role
	ToolCall     = types.ToolCall
	ToolSchema   = types.ToolSchema
	ToolResult   = types.ToolResult
	TokenUsage   = types.TokenUsage
	Error        = types.Error
	ErrorCode    = types.ErrorCode
	ImageContent = types.ImageContent
)

// Re-export constants.
const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
	RoleTool      = types.RoleTool
)

// Re-export error codes.
const (
	ErrInvalidRequest      = types.ErrInvalidRequest
	ErrAuthentication      = types.ErrAuthentication
	ErrUnauthorized        = types.ErrUnauthorized
	ErrForbidden           = types.ErrForbidden
	ErrRateLimit           = types.ErrRateLimit
	ErrRateLimited         = types.ErrRateLimited
	ErrQuotaExceeded       = types.ErrQuotaExceeded
	ErrModelNotFound       = types.ErrModelNotFound
	ErrModelOverloaded     = types.ErrModelOverloaded
	ErrContextTooLong      = types.ErrContextTooLong
	ErrContentFiltered     = types.ErrContentFiltered
	ErrUpstreamError       = types.ErrUpstreamError
	ErrUpstreamTimeout     = types.ErrUpstreamTimeout
	ErrTimeout             = types.ErrTimeout
	ErrInternalError       = types.ErrInternalError
	ErrServiceUnavailable  = types.ErrServiceUnavailable
	ErrProviderUnavailable = types.ErrProviderUnavailable
)

// Provider defines the unified LLM adapter interface. Every vendor wire
// family (OpenAI-compatible, Anthropic, Gemini) implements this same surface;
// translation happens entirely inside the adapter.
type Provider interface {
	// Completion sends a synchronous chat request.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream sends a streaming chat request.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck performs a lightweight health check.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string

	// SupportsNativeFunctionCalling returns whether native function calling is supported.
	SupportsNativeFunctionCalling() bool

	// ListModels returns the list of available models from the provider.
	// Returns nil if the provider doesn't support model listing.
	ListModels(ctx context.Context) ([]Model, error)

	// Pricing returns the per-token prices for a model, if known. Local
	// providers return a zero Pricing with Known=false.
	Pricing(model string) Pricing

	// Embed computes embeddings for the given inputs. Providers without
	// embedding support return ErrInvalidRequest.
	Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error)

	// GenerateImage requests image generation. Providers without image
	// support return ErrInvalidRequest.
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error)
}

// Pricing describes per-token cost for a model, in USD per token.
type Pricing struct {
	Known               bool    `json:"known"`
	InputPerToken       float64 `json:"input_per_token"`
	OutputPerToken      float64 `json:"output_per_token"`
	CacheReadPerToken    float64 `json:"cache_read_per_token,omitempty"`
	CacheWritePerToken   float64 `json:"cache_write_per_token,omitempty"`
}

// EmbedRequest mirrors the OpenAI embeddings request shape.
type EmbedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     int      `json:"dimensions,omitempty"`
	User           string   `json:"user,omitempty"`
}

// EmbedResponse mirrors the OpenAI embeddings response shape.
type EmbedResponse struct {
	Object string          `json:"object"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  EmbedUsage      `json:"usage"`
}

// EmbeddingData is a single embedding vector result.
type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbedUsage reports token usage for an embeddings call.
type EmbedUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ImageRequest is a passthrough image generation request, routed to an
// image-capable provider instance.
type ImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// ImageResponse is the passthrough image generation response.
type ImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

// ImageData is a single generated image result.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// HealthStatus represents provider health check result.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	ErrorRate float64       `json:"error_rate"`
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	TraceID     string            `json:"trace_id"`
	TenantID    string            `json:"tenant_id,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	TopP        float32           `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Tools       []ToolSchema      `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Tags        []string          `json:"tags,omitempty"`

	// Extended fields
	ReasoningMode      string   `json:"reasoning_mode,omitempty"`
	PreviousResponseID string   `json:"previous_response_id,omitempty"`
	ThoughtSignatures  []string `json:"thought_signatures,omitempty"`

	// FrequencyPenalty and PresencePenalty follow the OpenAI sampling
	// parameter semantics.
	FrequencyPenalty float32 `json:"frequency_penalty,omitempty"`
	PresencePenalty  float32 `json:"presence_penalty,omitempty"`
	TopK             int     `json:"top_k,omitempty"`
	Seed             *int64  `json:"seed,omitempty"`
	RepetitionPenalty float32 `json:"repetition_penalty,omitempty"`
	Logprobs         bool    `json:"logprobs,omitempty"`

	// ResponseFormat requests structured output; see the structured
	// output feature adapter.
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Extensions carries feature-adapter inputs (structured_outputs,
	// prompt_caching, ...) and cross-component private keys prefixed "_".
	Extensions map[string]any `json:"extensions,omitempty"`
}

// ResponseFormat requests a structured JSON response, optionally validated
// against a JSON Schema.
type ResponseFormat struct {
	Type       string          `json:"type"` // "text" | "json_object" | "json_schema"
	JSONSchema *JSONSchemaSpec `json:"json_schema,omitempty"`
}

// JSONSchemaSpec names and carries a Draft-7 JSON Schema for structured
// output validation.
type JSONSchemaSpec struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict,omitempty"`
}

// ChatResponse represents a chat completion response.
type ChatResponse struct {
	ID                string       `json:"id,omitempty"`
	Object            string       `json:"object,omitempty"`
	Created           int64        `json:"created,omitempty"`
	Provider          string       `json:"provider,omitempty"`
	Model             string       `json:"model"`
	Choices           []ChatChoice `json:"choices"`
	Usage             ChatUsage    `json:"usage"`
	CreatedAt         time.Time    `json:"created_at"`
	ThoughtSignatures []string     `json:"thought_signatures,omitempty"`

	// Extensions mirrors request Extensions for adapter-specific
	// round-trip data.
	Extensions map[string]any `json:"extensions,omitempty"`

	// RouteLLMWinRate is set by the router when a classifier decision was
	// made for this request; nil when no classifier ran.
	RouteLLMWinRate *float64 `json:"routellm_win_rate,omitempty"`
}

// ChatChoice represents a single choice in the response.
type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

// ChatUsage represents token usage in a response.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// CacheCreationInputTokens and CacheReadInputTokens are populated by
	// Anthropic-family adapters when prompt caching is in effect.
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// StreamChunk represents a streaming response chunk.
type StreamChunk struct {
	ID           string     `json:"id,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	Index        int        `json:"index,omitempty"`
	Delta        Message    `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *ChatUsage `json:"usage,omitempty"`
	Err          *Error     `json:"error,omitempty"`
}

// Model represents a model available from a provider. ProviderInstance
// always equals the registry instance name, never the provider type, per
// the registry's normalization invariant.
type Model struct {
	ID                string         `json:"id"`
	Object            string         `json:"object"`
	Created           int64          `json:"created"`
	OwnedBy           string         `json:"owned_by"`
	Permissions       []string       `json:"permissions"`
	Root              string         `json:"root"`
	Parent            string         `json:"parent"`
	DisplayName       string         `json:"display_name,omitempty"`
	ProviderInstance   string         `json:"provider_instance,omitempty"`
	ContextWindow     int            `json:"context_window,omitempty"`
	SupportsStreaming bool           `json:"supports_streaming,omitempty"`
	Capabilities      []ModelCapability `json:"capabilities,omitempty"`
	ParameterCount    string         `json:"parameter_count,omitempty"`
	Pricing           *Pricing       `json:"pricing,omitempty"`

	// Provider is the legacy field name some adapters still populate
	// with the provider type; the registry overwrites it with the
	// instance name before returning aggregated model lists.
	Provider string `json:"provider,omitempty"`
}

// ModelCapability enumerates what a model can be asked to do.
type ModelCapability string

const (
	CapabilityChat            ModelCapability = "chat"
	CapabilityCompletion      ModelCapability = "completion"
	CapabilityVision          ModelCapability = "vision"
	CapabilityFunctionCalling ModelCapability = "function_calling"
	CapabilityEmbedding       ModelCapability = "embedding"
)

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}
