package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/verdict/internal/store"
)

// Keyword is an offline baseline: a record is detected when its text contains
// any of the configured keywords (Parameters["keywords"]). It makes no network
// calls and is useful for dry runs of a source.
type Keyword struct{}

func (Keyword) Name() string { return ProviderKeyword }

func (Keyword) Close() error { return nil }

func (Keyword) Classify(ctx context.Context, item store.InputRecord, cfg Config) (Verdict, Usage, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return Verdict{}, Usage{}, NewTransient(err)
	}

	keywords, err := keywordList(cfg.Parameters)
	if err != nil {
		return Verdict{}, Usage{}, NewPermanent(err)
	}

	text := strings.ToLower(item.Text)
	var matched []string
	for _, k := range keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			matched = append(matched, k)
		}
	}

	v := Verdict{
		Detected:   len(matched) > 0,
		Confidence: min(1, 0.5+0.25*float64(len(matched))),
		Rationale:  "no keywords matched",
	}
	if v.Detected {
		v.Rationale = "matched: " + strings.Join(matched, ", ")
	} else {
		v.Confidence = 0.5
	}
	v.Label = fmt.Sprint(v.Detected)

	raw, _ := json.Marshal(v)
	v.Raw = string(raw)

	return v, Usage{Elapsed: time.Since(start)}, nil
}

func keywordList(params map[string]any) ([]string, error) {
	raw, ok := params["keywords"]
	if !ok {
		return nil, fmt.Errorf("keyword provider requires parameters.keywords")
	}

	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, k := range v {
			s, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("keyword %v is not a string", k)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return strings.Split(v, ","), nil
	default:
		return nil, fmt.Errorf("parameters.keywords must be a list")
	}
}
