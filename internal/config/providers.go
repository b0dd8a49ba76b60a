package config

import "os"

const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvOpenAIBaseURL   = "VERDICT_OPENAI_BASE_URL"
)

// ProvidersConfig holds credentials for the classifier providers. Keys are
// usually supplied through the environment rather than written to disk.
type ProvidersConfig struct {
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	GeminiAPIKey    string `toml:"gemini_api_key"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
	OpenAIBaseURL   string `toml:"openai_base_url"`
}

// Finalize applies defaults and environment variable overrides. Missing keys
// are reported when a provider is constructed, not here, so commands that never
// classify run without credentials.
func (c *ProvidersConfig) Finalize() error {
	if c.OpenAIBaseURL == "" {
		c.OpenAIBaseURL = "https://api.openai.com/v1"
	}

	if v := os.Getenv(EnvAnthropicAPIKey); v != "" {
		c.AnthropicAPIKey = v
	}
	if v := os.Getenv(EnvGeminiAPIKey); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		c.OpenAIBaseURL = v
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *ProvidersConfig) Merge(overlay *ProvidersConfig) {
	if overlay.AnthropicAPIKey != "" {
		c.AnthropicAPIKey = overlay.AnthropicAPIKey
	}
	if overlay.GeminiAPIKey != "" {
		c.GeminiAPIKey = overlay.GeminiAPIKey
	}
	if overlay.OpenAIAPIKey != "" {
		c.OpenAIAPIKey = overlay.OpenAIAPIKey
	}
	if overlay.OpenAIBaseURL != "" {
		c.OpenAIBaseURL = overlay.OpenAIBaseURL
	}
}
