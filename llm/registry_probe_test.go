package llm

import (
	"context"
	"net/http"
)

// fakeProbeProvider is a minimal Provider used by registry and health
// monitor tests to control exactly what HealthCheck/ListModels return.
type fakeProbeProvider struct {
	name        string
	models      []Model
	listErr     error
	healthState *HealthStatus
	healthErr   error
}

func (p *fakeProbeProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Provider: p.name, Model: req.Model}, nil
}

func (p *fakeProbeProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func (p *fakeProbeProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.healthState, p.healthErr
}

func (p *fakeProbeProvider) Name() string { return p.name }

func (p *fakeProbeProvider) SupportsNativeFunctionCalling() bool { return false }

func (p *fakeProbeProvider) ListModels(ctx context.Context) ([]Model, error) {
	return p.models, p.listErr
}

func (p *fakeProbeProvider) Pricing(model string) Pricing { return Pricing{} }

func (p *fakeProbeProvider) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	return nil, &Error{Code: ErrInvalidRequest, Message: "embeddings not supported"}
}

func (p *fakeProbeProvider) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResponse, error) {
	return nil, &Error{Code: ErrInvalidRequest, Message: "image generation not supported"}
}

// unauthorizedErr/serverErr build the *Error shapes MapHTTPError would
// produce for a 401 and a 500 upstream response.
func unauthorizedErr() error {
	return &Error{Code: ErrUnauthorized, Message: "invalid api key", HTTPStatus: http.StatusUnauthorized}
}

func serverErr() error {
	return &Error{Code: ErrUpstreamError, Message: "upstream failure", HTTPStatus: http.StatusInternalServerError}
}
