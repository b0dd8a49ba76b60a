package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/verdict/internal/classifier"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		detected   bool
		label      string
		confidence float64
		rationale  string
	}{
		{
			name:       "plain json",
			raw:        `{"detected": true, "confidence": 0.82, "rationale": "mentions a wire transfer"}`,
			detected:   true,
			label:      "true",
			confidence: 0.82,
			rationale:  "mentions a wire transfer",
		},
		{
			name:       "fenced json with prose",
			raw:        "Here is my answer:\n```json\n{\"detected\": false, \"confidence\": 0.1}\n```",
			detected:   false,
			label:      "false",
			confidence: 0.1,
		},
		{
			name:       "trailing comma",
			raw:        `{"detected": true, "confidence": 0.5,}`,
			detected:   true,
			label:      "true",
			confidence: 0.5,
		},
		{
			name:       "spelled out decimal",
			raw:        `{"detected": true, "confidence": "zero point eight five"}`,
			detected:   true,
			label:      "true",
			confidence: 0.85,
		},
		{
			name:       "bare spelled out decimal",
			raw:        `{"detected": true, "confidence": zero point seven}`,
			detected:   true,
			label:      "true",
			confidence: 0.7,
		},
		{
			name:       "point only",
			raw:        `{"detected": true, "confidence": "point nine"}`,
			detected:   true,
			label:      "true",
			confidence: 0.9,
		},
		{
			name:       "spelled percentage",
			raw:        `{"detected": true, "confidence": "eighty-five percent"}`,
			detected:   true,
			label:      "true",
			confidence: 0.85,
		},
		{
			name:       "percent string",
			raw:        `{"detected": true, "confidence": "72%"}`,
			detected:   true,
			label:      "true",
			confidence: 0.72,
		},
		{
			name:       "percent number",
			raw:        `{"detected": true, "confidence": 64}`,
			detected:   true,
			label:      "true",
			confidence: 0.64,
		},
		{
			name:       "level",
			raw:        `{"detected": "yes", "confidence": HIGH, "rationale": "urgent: pay now"}`,
			detected:   true,
			label:      "true",
			confidence: 0.9,
			rationale:  "urgent: pay now",
		},
		{
			name:       "yes no booleans",
			raw:        `{"answer": "No", "confidence": "low"}`,
			detected:   false,
			label:      "false",
			confidence: 0.3,
		},
		{
			name:       "clamped",
			raw:        `{"detected": true, "confidence": 250}`,
			detected:   true,
			label:      "true",
			confidence: 1,
		},
		{
			name:       "negative clamped",
			raw:        `{"detected": false, "confidence": -0.2}`,
			detected:   false,
			label:      "false",
			confidence: 0,
		},
		{
			name:       "class label",
			raw:        `{"label": "phishing", "confidence": 0.4, "explanation": "spoofed sender"}`,
			detected:   false,
			label:      "phishing",
			confidence: 0.4,
			rationale:  "spoofed sender",
		},
		{
			name:       "label as boolean",
			raw:        `{"classification": "positive"}`,
			detected:   true,
			label:      "positive",
			confidence: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := classifier.ParseVerdict(tt.raw)
			require.NoError(t, err)

			assert.Equal(t, tt.detected, v.Detected)
			assert.Equal(t, tt.label, v.Label)
			assert.InDelta(t, tt.confidence, v.Confidence, 1e-9)
			assert.Equal(t, tt.rationale, v.Rationale)
			assert.Equal(t, tt.raw, v.Raw)
		})
	}
}

func TestParseVerdictFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I think this one is fine."},
		{"no verdict field", `{"confidence": 0.9}`},
		{"unreadable detected", `{"detected": "perhaps"}`},
		{"unreadable confidence", `{"detected": true, "confidence": "somewhat"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classifier.ParseVerdict(tt.raw)
			require.Error(t, err)
			assert.Equal(t, classifier.Permanent, classifier.CategoryOf(err))
		})
	}
}
