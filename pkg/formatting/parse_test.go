package formatting_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/verdict/pkg/formatting"
)

type reply struct {
	Detected   bool    `json:"detected"`
	Confidence float64 `json:"confidence"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  reply
	}{
		{"direct", `{"detected":true,"confidence":0.9}`, reply{true, 0.9}},
		{"padded", "  {\"detected\":false,\"confidence\":0.1}\n", reply{false, 0.1}},
		{"fenced", "```json\n{\"detected\":true,\"confidence\":0.7}\n```", reply{true, 0.7}},
		{"fenced without tag", "```\n{\"detected\":true,\"confidence\":0.3}\n```", reply{true, 0.3}},
		{"prose around fence", "Here you go:\n```json\n{\"detected\":true,\"confidence\":0.5}\n```\nThanks.", reply{true, 0.5}},
		{"embedded object", `The answer is {"detected":false,"confidence":0.8} as requested.`, reply{false, 0.8}},
		{"trailing comma", `{"detected":true,"confidence":0.6,}`, reply{true, 0.6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[reply](tt.input)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFailures(t *testing.T) {
	for _, input := range []string{"", "not json at all", "```json\n{broken\n```"} {
		if _, err := formatting.Parse[reply](input); !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("Parse(%q) error = %v, want ErrParseFailed", input, err)
		}
	}
}

func TestCandidatesOrder(t *testing.T) {
	got := formatting.Candidates("x ```json\n{\"a\":1}\n``` y")
	if len(got) != 3 {
		t.Fatalf("Candidates = %q, want 3 entries", got)
	}
	if got[1] != `{"a":1}` {
		t.Errorf("fence candidate = %q", got[1])
	}
}

func TestTruncate(t *testing.T) {
	if got := formatting.Truncate("héllo", 10); got != "héllo" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := formatting.Truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("Truncate long = %q", got)
	}
}
