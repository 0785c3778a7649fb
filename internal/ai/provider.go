// Package ai implements the provider abstraction layer: a capability
// interface over several AI text-generation services, a router that
// falls back across configured providers, and a response cache.
package ai

import (
	"context"
)

// Format selects the response shape requested from a provider.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Request is a single generation request. The pipeline is agnostic to
// provider-specific wire shapes beyond this contract.
type Request struct {
	System    string
	Prompt    string
	Format    Format
	Grounding bool
}

// Provider generates text for a request. Implementations return
// *domain.APIError for structured HTTP failures so the resilient
// invoker can classify them.
type Provider interface {
	// Name returns the provider identifier used in configuration and
	// fallback ordering.
	Name() string
	// Generate executes one generation call.
	Generate(ctx context.Context, req Request) (string, error)
}

// Provider identifiers. FallbackOrder is the fixed substitution order
// walked when the selected provider is not configured.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
)

// FallbackOrder is the fixed provider substitution order.
var FallbackOrder = []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter}
