package llm

import (
	"fmt"
	"os"
)

// ProviderFactory creates providers.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// DefaultModels maps provider names to their default models.
var DefaultModels = map[string]string{
	"anthropic":  "claude-sonnet-4-20250514",
	"openai":     "gpt-4o",
	"openrouter": "anthropic/claude-sonnet-4",
}

var registry = map[string]ProviderFactory{
	"anthropic": func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	},
	"openai": func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	},
	"openrouter": func(cfg ProviderConfig) (Provider, error) {
		return NewOpenRouterProvider(cfg)
	},
}

// NewProvider creates a provider by name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: anthropic, openai, openrouter)", name)
	}
	return factory(cfg)
}

// RegisterProvider adds a custom provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registry[name] = factory
}

// AvailableProviders returns the list of registered providers.
func AvailableProviders() []string {
	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	return providers
}

// DetectProvider auto-detects a provider from available API keys.
// Priority: ANTHROPIC_API_KEY > OPENAI_API_KEY > OPENROUTER_API_KEY.
func DetectProvider() (provider string, apiKey string) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return "anthropic", key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return "openai", key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		return "openrouter", key
	}
	return "", ""
}

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(provider string) string {
	return DefaultModels[provider]
}
