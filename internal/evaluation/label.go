package evaluation

import (
	"strings"

	"github.com/JaimeStill/verdict/internal/store"
)

// Label scores exact label agreement (case-insensitive) for multi-class runs
// and reports per-class recall as "recall:<label>".
type Label struct{}

func (Label) Name() string { return "label" }

func (Label) Aggregate(outcomes []store.Outcome) (Metrics, error) {
	m, err := common("label", outcomes)
	if err != nil {
		return Metrics{}, err
	}

	correct := 0
	support := make(map[string]int)
	hits := make(map[string]int)

	for _, o := range outcomes {
		if o.ErrorOccurred || o.GroundTruth == nil {
			continue
		}
		truth := strings.ToLower(strings.TrimSpace(*o.GroundTruth))
		predicted := strings.ToLower(strings.TrimSpace(o.Label))

		m.Evaluated++
		support[truth]++
		if truth == predicted {
			correct++
			hits[truth]++
		}
	}

	m.Scores["accuracy"] = ratio(correct, m.Evaluated)
	for class, n := range support {
		m.Scores["recall:"+class] = ratio(hits[class], n)
	}
	return m, nil
}
