package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/JaimeStill/verdict/internal/store"
)

// Anthropic classifies through the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates an Anthropic provider. Retries are left to WithRetry,
// so the SDK's own retry loop is disabled unless opts re-enable it.
func NewAnthropic(apiKey string, opts ...option.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic", ErrMissingAPIKey)
	}

	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &Anthropic{client: anthropic.NewClient(append(base, opts...)...)}, nil
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) Close() error { return nil }

func (a *Anthropic) Classify(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error) {
	system, user, err := Render(cfg, item)
	if err != nil {
		return Verdict{}, Usage{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*cfg.Temperature)
	}

	start := time.Now()
	message, err := a.client.Messages.New(ctx, params)
	usage := Usage{Elapsed: time.Since(start)}
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Verdict{}, usage, FromStatus(apiErr.StatusCode, fmt.Errorf("anthropic: %w", err))
		}
		return Verdict{}, usage, fromTransport(fmt.Errorf("anthropic: %w", err))
	}

	usage.InputTokens = message.Usage.InputTokens
	usage.OutputTokens = message.Usage.OutputTokens

	for _, block := range message.Content {
		if block.Type == "text" {
			v, err := ParseVerdict(block.Text)
			return v, usage, err
		}
	}
	return Verdict{}, usage, NewPermanent(fmt.Errorf("anthropic: %w", ErrEmptyResponse))
}
