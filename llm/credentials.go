package llm

import (
	"context"
	"encoding/json"
)

type credentialOverrideKey struct{}

// CredentialOverride overrides a provider's credentials for a single request.
// It is only ever carried on the context, never unmarshaled from request JSON,
// so a client can't inject credentials directly through the API surface.
type CredentialOverride struct {
	APIKey    string
	SecretKey string
}

func (c CredentialOverride) String() string {
	if c.APIKey == "" && c.SecretKey == "" {
		return "CredentialOverride{}"
	}
	return "CredentialOverride{APIKey:***, SecretKey:***}"
}

func (c CredentialOverride) MarshalJSON() ([]byte, error) {
	type masked struct {
		APIKey    string `json:"api_key,omitempty"`
		SecretKey string `json:"secret_key,omitempty"`
	}
	out := masked{}
	if c.APIKey != "" {
		out.APIKey = "***"
	}
	if c.SecretKey != "" {
		out.SecretKey = "***"
	}
	return json.Marshal(out)
}

// WithCredentialOverride stores a credential override on ctx. Passing a zero
// CredentialOverride leaves ctx unchanged.
func WithCredentialOverride(ctx context.Context, c CredentialOverride) context.Context {
	if c.APIKey == "" && c.SecretKey == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialOverrideKey{}, c)
}

// CredentialOverrideFromContext reads a credential override from ctx, if any.
func CredentialOverrideFromContext(ctx context.Context) (CredentialOverride, bool) {
	v := ctx.Value(credentialOverrideKey{})
	if v == nil {
		return CredentialOverride{}, false
	}
	c, ok := v.(CredentialOverride)
	return c, ok
}
