package llm

import "strings"

// Provider is the vendor operating a model.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderMeta      Provider = "meta"
	ProviderMistral   Provider = "mistral"
	ProviderFake      Provider = "fake"
)

var knownProviders = map[Provider]struct{}{
	ProviderOpenAI:    {},
	ProviderAnthropic: {},
	ProviderGoogle:    {},
	ProviderMeta:      {},
	ProviderMistral:   {},
	ProviderFake:      {},
}

func normalizeProvider(p Provider) Provider {
	return Provider(strings.ToLower(strings.TrimSpace(string(p))))
}

// Capability names used by the built-in catalog.
const (
	CapText      = "text"
	CapCode      = "code"
	CapVision    = "vision"
	CapReasoning = "reasoning"
	CapLongForm  = "long-form"
	CapFast      = "fast"
)

// Cost is USD per 1k tokens.
type Cost struct {
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// AIModel describes one model the service can call. Values are immutable
// once loaded into a Catalog.
type AIModel struct {
	ID                string   `json:"id" yaml:"id"`
	DisplayName       string   `json:"displayName,omitempty" yaml:"display_name"`
	Provider          Provider `json:"provider" yaml:"provider"`
	MaxTokens         int      `json:"maxTokens" yaml:"max_tokens"`
	ContextWindow     int      `json:"contextWindow,omitempty" yaml:"context_window"`
	SupportsStreaming bool     `json:"supportsStreaming" yaml:"supports_streaming"`
	SupportsVision    bool     `json:"supportsVision" yaml:"supports_vision"`
	CostPer1kTokens   Cost     `json:"costPer1kTokens" yaml:"cost_per_1k_tokens"`
	Capabilities      []string `json:"capabilities" yaml:"capabilities"`

	// Transport names the registered transport serving this model
	// (gemini, openai, groq, anthropic, fake).
	Transport string `json:"transport" yaml:"transport"`
	// UpstreamModel is the provider-side model name; defaults to ID.
	UpstreamModel string `json:"upstreamModel,omitempty" yaml:"upstream_model"`
}

// HasCapability reports whether the model advertises cap.
func (m AIModel) HasCapability(cap string) bool {
	cap = strings.ToLower(strings.TrimSpace(cap))
	for _, c := range m.Capabilities {
		if strings.ToLower(c) == cap {
			return true
		}
	}
	return false
}

// Upstream returns the name to send to the provider.
func (m AIModel) Upstream() string {
	if m.UpstreamModel != "" {
		return m.UpstreamModel
	}
	return m.ID
}

// EstimateCost returns the USD cost of a call with the given token counts.
func EstimateCost(m AIModel, promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*m.CostPer1kTokens.Input +
		float64(completionTokens)/1000*m.CostPer1kTokens.Output
}

func (m AIModel) clone() AIModel {
	m.Capabilities = append([]string(nil), m.Capabilities...)
	return m
}
