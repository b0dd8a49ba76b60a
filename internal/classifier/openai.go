package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JaimeStill/verdict/internal/store"
)

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// OpenAI classifies through any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAI creates an OpenAI-compatible provider. apiKey may be empty for
// local gateways that do not authenticate.
func NewOpenAI(baseURL, apiKey string, client *http.Client) *OpenAI {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) Classify(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error) {
	system, user, err := Render(cfg, item)
	if err != nil {
		return Verdict{}, Usage{}, err
	}

	body, err := json.Marshal(openAIRequest{
		Model: cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return Verdict{}, Usage{}, NewPermanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, Usage{}, NewPermanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return Verdict{}, Usage{Elapsed: time.Since(start)}, fromTransport(fmt.Errorf("openai: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	usage := Usage{Elapsed: time.Since(start)}
	if err != nil {
		return Verdict{}, usage, fromTransport(fmt.Errorf("openai: read response: %w", err))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil && resp.StatusCode < 300 {
		return Verdict{}, usage, NewPermanent(fmt.Errorf("openai: parse response: %w", err))
	}

	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return Verdict{}, usage, FromStatus(resp.StatusCode, fmt.Errorf("openai: status %d: %s", resp.StatusCode, msg))
	}

	if parsed.Usage != nil {
		usage.InputTokens = parsed.Usage.PromptTokens
		usage.OutputTokens = parsed.Usage.CompletionTokens
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return Verdict{}, usage, NewPermanent(fmt.Errorf("openai: %w", ErrEmptyResponse))
	}

	v, err := ParseVerdict(parsed.Choices[0].Message.Content)
	return v, usage, err
}
