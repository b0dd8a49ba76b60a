package classifier_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/verdict/internal/classifier"
	"github.com/JaimeStill/verdict/internal/store"
)

func record() store.InputRecord {
	return store.InputRecord{
		SourceName: "claims",
		RecordID:   "case-17|email",
		Text:       "Please wire the funds today, the CEO is waiting.",
	}
}

func finalized(t *testing.T, cfg classifier.Config) classifier.Config {
	t.Helper()
	require.NoError(t, cfg.Finalize())
	return cfg
}

func TestOpenAIClassify(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"choices": [{"message": {"role": "assistant", "content": "{\"detected\": true, \"confidence\": 0.9, \"rationale\": \"urgent payment\"}"}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 18}
		}`)
	}))
	defer srv.Close()

	p := classifier.NewOpenAI(srv.URL+"/v1/", "sk-test", srv.Client())
	temp := 0.0
	cfg := finalized(t, classifier.Config{Provider: classifier.ProviderOpenAI, Model: "gpt-test", Temperature: &temp})

	v, usage, err := p.Classify(context.Background(), record(), cfg)
	require.NoError(t, err)

	assert.True(t, v.Detected)
	assert.InDelta(t, 0.9, v.Confidence, 1e-9)
	assert.Equal(t, "urgent payment", v.Rationale)
	assert.Equal(t, int64(120), usage.InputTokens)
	assert.Equal(t, int64(18), usage.OutputTokens)

	assert.Equal(t, "gpt-test", captured["model"])
	assert.Equal(t, 0.0, captured["temperature"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1].(map[string]any)["content"], "case-17|email")
	assert.Contains(t, messages[1].(map[string]any)["content"], "wire the funds")
}

func TestOpenAIErrorCategories(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category classifier.Category
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error": {"message": "slow down"}}`, classifier.Transient},
		{"server error", http.StatusBadGateway, `bad gateway`, classifier.Transient},
		{"bad request", http.StatusBadRequest, `{"error": {"message": "unknown model"}}`, classifier.Permanent},
		{"malformed output", http.StatusOK, `{"choices": [{"message": {"content": "no idea"}}]}`, classifier.Permanent},
		{"empty choices", http.StatusOK, `{"choices": []}`, classifier.Permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := classifier.NewOpenAI(srv.URL, "", srv.Client())
			cfg := finalized(t, classifier.Config{Provider: classifier.ProviderOpenAI, Model: "m"})

			_, _, err := p.Classify(context.Background(), record(), cfg)
			require.Error(t, err)
			assert.Equal(t, tt.category, classifier.CategoryOf(err))
		})
	}
}

func TestOpenAITransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := classifier.NewOpenAI(url, "", nil)
	cfg := finalized(t, classifier.Config{Provider: classifier.ProviderOpenAI, Model: "m"})

	_, _, err := p.Classify(context.Background(), record(), cfg)
	require.Error(t, err)
	assert.Equal(t, classifier.Transient, classifier.CategoryOf(err))
}

func TestAnthropicClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "{\"detected\": false, \"confidence\": \"LOW\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 90, "output_tokens": 12}
		}`)
	}))
	defer srv.Close()

	p, err := classifier.NewAnthropic("sk-ant-test", option.WithBaseURL(srv.URL))
	require.NoError(t, err)

	cfg := finalized(t, classifier.Config{Provider: classifier.ProviderAnthropic, Model: "claude-test"})
	v, usage, err := p.Classify(context.Background(), record(), cfg)
	require.NoError(t, err)

	assert.False(t, v.Detected)
	assert.InDelta(t, 0.3, v.Confidence, 1e-9)
	assert.Equal(t, int64(90), usage.InputTokens)
	assert.Equal(t, int64(12), usage.OutputTokens)
}

func TestAnthropicStatusCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`)
	}))
	defer srv.Close()

	p, err := classifier.NewAnthropic("sk-ant-test", option.WithBaseURL(srv.URL))
	require.NoError(t, err)

	cfg := finalized(t, classifier.Config{Provider: classifier.ProviderAnthropic, Model: "claude-test"})
	_, _, err = p.Classify(context.Background(), record(), cfg)
	require.Error(t, err)
	assert.Equal(t, classifier.Transient, classifier.CategoryOf(err))
}

func TestNewProviderRequiresKeys(t *testing.T) {
	_, err := classifier.NewProvider(context.Background(),
		classifier.Config{Provider: classifier.ProviderAnthropic}, classifier.Credentials{})
	assert.ErrorIs(t, err, classifier.ErrMissingAPIKey)

	_, err = classifier.NewProvider(context.Background(),
		classifier.Config{Provider: classifier.ProviderGemini}, classifier.Credentials{})
	assert.ErrorIs(t, err, classifier.ErrMissingAPIKey)

	p, err := classifier.NewProvider(context.Background(),
		classifier.Config{Provider: classifier.ProviderKeyword}, classifier.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, classifier.ProviderKeyword, p.Name())
}

func TestKeywordClassify(t *testing.T) {
	cfg := finalized(t, classifier.Config{
		Provider:   classifier.ProviderKeyword,
		Parameters: map[string]any{"keywords": []any{"wire", "gift card"}},
	})

	v, _, err := classifier.Keyword{}.Classify(context.Background(), record(), cfg)
	require.NoError(t, err)
	assert.True(t, v.Detected)
	assert.Equal(t, "true", v.Label)
	assert.InDelta(t, 0.75, v.Confidence, 1e-9)
	assert.Contains(t, v.Rationale, "wire")

	_, _, err = classifier.Keyword{}.Classify(context.Background(), record(), classifier.Config{})
	assert.Equal(t, classifier.Permanent, classifier.CategoryOf(err))
}

func TestConfigFinalize(t *testing.T) {
	cfg := classifier.Config{Provider: classifier.ProviderOpenAI, Model: "m"}
	require.NoError(t, cfg.Finalize())
	assert.Equal(t, classifier.DefaultSystemPrompt, cfg.SystemPrompt)
	assert.Equal(t, classifier.DefaultPromptTemplate, cfg.PromptTemplate)
	assert.Equal(t, 1024, cfg.MaxTokens)

	bad := []classifier.Config{
		{Provider: "bard", Model: "m"},
		{Provider: classifier.ProviderOpenAI},
		{Provider: classifier.ProviderOpenAI, Model: "m", PromptTemplate: "{{.Text"},
	}
	for _, c := range bad {
		assert.Error(t, c.Finalize())
	}
}

func TestRenderMissingField(t *testing.T) {
	cfg := classifier.Config{PromptTemplate: "{{.Nope}}"}
	_, _, err := classifier.Render(cfg, record())
	require.Error(t, err)
	assert.Equal(t, classifier.Permanent, classifier.CategoryOf(err))
}
