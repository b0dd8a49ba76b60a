package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Credentials holds provider keys and endpoints resolved from service config.
type Credentials struct {
	AnthropicAPIKey string
	GeminiAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	HTTPClient      *http.Client
}

// Options controls the middleware wrapped around a provider.
type Options struct {
	RatePerMinute int
	MaxAttempts   int
	RetryBackoff  time.Duration
}

// NewProvider constructs the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg Config, creds Credentials) (Provider, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropic(creds.AnthropicAPIKey)
	case ProviderGemini:
		return NewGemini(ctx, creds.GeminiAPIKey)
	case ProviderOpenAI:
		return NewOpenAI(creds.OpenAIBaseURL, creds.OpenAIAPIKey, creds.HTTPClient), nil
	case ProviderKeyword:
		return Keyword{}, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// Wrap applies the rate limit and retry middleware configured in opts.
// The limiter sits inside the retry loop so retries are also paced.
func Wrap(c Classifier, opts Options, logger *slog.Logger) Classifier {
	var mw []Middleware
	if opts.MaxAttempts > 1 {
		backoff := opts.RetryBackoff
		if backoff <= 0 {
			backoff = 2 * time.Second
		}
		mw = append(mw, WithRetry(opts.MaxAttempts, backoff, logger.With("system", "classifier")))
	}
	if opts.RatePerMinute > 0 {
		mw = append(mw, WithRateLimit(PerMinute(opts.RatePerMinute)))
	}
	return Chain(c, mw...)
}
