package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/JaimeStill/verdict/internal/store"
)

// Gemini classifies through the Gemini API.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini", ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) Classify(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error) {
	system, user, err := Render(cfg, item)
	if err != nil {
		return Verdict{}, Usage{}, err
	}

	model := g.client.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	model.ResponseMIMEType = "application/json"
	model.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(cfg.MaxTokens))
	if cfg.Temperature != nil {
		model.GenerationConfig.Temperature = genai.Ptr(float32(*cfg.Temperature))
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(user))
	usage := Usage{Elapsed: time.Since(start)}
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return Verdict{}, usage, FromStatus(apiErr.Code, fmt.Errorf("gemini: %w", err))
		}
		return Verdict{}, usage, fromTransport(fmt.Errorf("gemini: %w", err))
	}

	if resp.UsageMetadata != nil {
		usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Verdict{}, usage, NewPermanent(fmt.Errorf("gemini: %w", ErrEmptyResponse))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return Verdict{}, usage, NewPermanent(fmt.Errorf("gemini: %w", ErrEmptyResponse))
	}

	v, err := ParseVerdict(text.String())
	return v, usage, err
}
