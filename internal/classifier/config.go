package classifier

import (
	"fmt"
	"slices"
)

// Provider names accepted in Config.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderKeyword   = "keyword"
)

var providers = []string{ProviderAnthropic, ProviderGemini, ProviderOpenAI, ProviderKeyword}

// Config is the classifier configuration of a run. It is copied into the run
// row when the run starts and read back from there on every resume.
type Config struct {
	Provider       string         `json:"provider" yaml:"provider"`
	Model          string         `json:"model" yaml:"model"`
	PromptVersion  string         `json:"prompt_version" yaml:"prompt_version"`
	SystemPrompt   string         `json:"system_prompt" yaml:"system_prompt"`
	PromptTemplate string         `json:"prompt_template" yaml:"prompt_template"`
	Temperature    *float64       `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens      int            `json:"max_tokens" yaml:"max_tokens"`
	Parameters     map[string]any `json:"parameters,omitempty" yaml:"parameters"`
}

// Finalize fills defaults and validates.
func (c *Config) Finalize() error {
	c.loadDefaults()
	return c.validate()
}

func (c *Config) loadDefaults() {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.PromptTemplate == "" {
		c.PromptTemplate = DefaultPromptTemplate
	}
	if c.PromptVersion == "" {
		c.PromptVersion = "v1"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
}

func (c *Config) validate() error {
	if !slices.Contains(providers, c.Provider) {
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	if c.Model == "" && c.Provider != ProviderKeyword {
		return fmt.Errorf("model required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be within [0, 2]")
	}
	if _, err := parseTemplate(c.PromptTemplate); err != nil {
		return fmt.Errorf("prompt_template: %w", err)
	}
	return nil
}
