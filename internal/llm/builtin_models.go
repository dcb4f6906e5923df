package llm

// BuiltinModels returns the catalog shipped with the service. Prices are
// list prices in USD per 1k tokens.
func BuiltinModels() []AIModel {
	return []AIModel{
		{
			ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo", Provider: ProviderOpenAI,
			MaxTokens: 4096, ContextWindow: 128000, SupportsStreaming: true, SupportsVision: true,
			CostPer1kTokens: Cost{Input: 0.01, Output: 0.03},
			Capabilities:    []string{CapText, CapCode, CapVision, CapReasoning, CapLongForm},
			Transport:       "openai",
		},
		{
			ID: "gpt-4o", DisplayName: "GPT-4o", Provider: ProviderOpenAI,
			MaxTokens: 16384, ContextWindow: 128000, SupportsStreaming: true, SupportsVision: true,
			CostPer1kTokens: Cost{Input: 0.0025, Output: 0.01},
			Capabilities:    []string{CapText, CapCode, CapVision, CapReasoning, CapLongForm},
			Transport:       "openai",
		},
		{
			ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: ProviderOpenAI,
			MaxTokens: 16384, ContextWindow: 128000, SupportsStreaming: true, SupportsVision: true,
			CostPer1kTokens: Cost{Input: 0.00015, Output: 0.0006},
			Capabilities:    []string{CapText, CapCode, CapVision, CapFast},
			Transport:       "openai",
		},
		{
			ID: "claude-3-5-sonnet", DisplayName: "Claude 3.5 Sonnet", Provider: ProviderAnthropic,
			MaxTokens: 8192, ContextWindow: 200000, SupportsStreaming: true, SupportsVision: true,
			CostPer1kTokens: Cost{Input: 0.003, Output: 0.015},
			Capabilities:    []string{CapText, CapCode, CapVision, CapReasoning, CapLongForm},
			Transport:       "anthropic", UpstreamModel: "claude-3-5-sonnet-latest",
		},
		{
			ID: "claude-3-haiku", DisplayName: "Claude 3 Haiku", Provider: ProviderAnthropic,
			MaxTokens: 4096, ContextWindow: 200000, SupportsStreaming: true, SupportsVision: true,
			CostPer1kTokens: Cost{Input: 0.00025, Output: 0.00125},
			Capabilities:    []string{CapText, CapCode, CapFast},
			Transport:       "anthropic", UpstreamModel: "claude-3-haiku-20240307",
		},
		{
			ID: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", Provider: ProviderGoogle,
			MaxTokens: 8192, ContextWindow: 2000000, SupportsStreaming: true, SupportsVision: true,
			CostPer1kTokens: Cost{Input: 0.00125, Output: 0.005},
			Capabilities:    []string{CapText, CapCode, CapVision, CapReasoning, CapLongForm},
			Transport:       "gemini",
		},
		{
			ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", Provider: ProviderGoogle,
			MaxTokens: 65536, ContextWindow: 1048576, SupportsStreaming: true, SupportsVision: true,
			CostPer1kTokens: Cost{Input: 0.0003, Output: 0.0025},
			Capabilities:    []string{CapText, CapCode, CapVision, CapFast, CapLongForm},
			Transport:       "gemini",
		},
		{
			ID: "llama-3.3-70b", DisplayName: "Llama 3.3 70B (Groq)", Provider: ProviderMeta,
			MaxTokens: 32768, ContextWindow: 131072, SupportsStreaming: true,
			CostPer1kTokens: Cost{Input: 0.00059, Output: 0.00079},
			Capabilities:    []string{CapText, CapCode, CapFast},
			Transport:       "groq", UpstreamModel: "llama-3.3-70b-versatile",
		},
		{
			ID: "fake-fast", DisplayName: "Offline stub", Provider: ProviderFake,
			MaxTokens: 8192, ContextWindow: 32768,
			Capabilities: []string{CapText, CapFast},
			Transport:    "fake",
		},
		{
			ID: "fake-slow", DisplayName: "Offline stub (slow)", Provider: ProviderFake,
			MaxTokens: 8192, ContextWindow: 32768,
			Capabilities: []string{CapText},
			Transport:    "fake",
		},
	}
}

// BuiltinDefaults pairs the built-in catalog with a default primary and
// a fallback from another provider.
func BuiltinDefaults() CatalogDefaults {
	return CatalogDefaults{Model: "gpt-4-turbo", Fallback: "claude-3-5-sonnet"}
}
