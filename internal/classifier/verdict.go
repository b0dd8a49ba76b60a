package classifier

import (
	"encoding/json"
	"time"
)

// Verdict is the structured outcome of one classification.
type Verdict struct {
	Detected bool `json:"detected"`
	// Label is the class name; "true" or "false" for binary classifiers.
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Raw        string  `json:"raw"`
}

// Usage carries timing and token counters for one call.
type Usage struct {
	Elapsed      time.Duration
	InputTokens  int64
	OutputTokens int64
}

type usageJSON struct {
	ElapsedMS    int64 `json:"elapsed_ms"`
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
}

func (u Usage) MarshalJSON() ([]byte, error) {
	return json.Marshal(usageJSON{
		ElapsedMS:    u.Elapsed.Milliseconds(),
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
	})
}

func (u *Usage) UnmarshalJSON(data []byte) error {
	var v usageJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	u.Elapsed = time.Duration(v.ElapsedMS) * time.Millisecond
	u.InputTokens = v.InputTokens
	u.OutputTokens = v.OutputTokens
	return nil
}
