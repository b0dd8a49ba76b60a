package evaluation

import (
	"strconv"
	"strings"

	"github.com/JaimeStill/verdict/internal/store"
)

// Binary scores detected/not-detected verdicts against a boolean ground truth.
// Positive labels are "true", "1", "yes", and "positive". Rows whose ground
// truth cannot be read as a boolean are counted but not scored.
type Binary struct{}

func (Binary) Name() string { return "binary" }

func (Binary) Aggregate(outcomes []store.Outcome) (Metrics, error) {
	m, err := common("binary", outcomes)
	if err != nil {
		return Metrics{}, err
	}

	var tp, fp, tn, fn int
	for _, o := range outcomes {
		if o.ErrorOccurred || o.GroundTruth == nil {
			continue
		}
		truth, ok := parseBinary(*o.GroundTruth)
		if !ok {
			continue
		}
		predicted, ok := parseBinary(o.Label)
		if !ok {
			continue
		}

		m.Evaluated++
		switch {
		case predicted && truth:
			tp++
		case predicted && !truth:
			fp++
		case !predicted && truth:
			fn++
		default:
			tn++
		}
	}

	m.Scores["true_positives"] = float64(tp)
	m.Scores["false_positives"] = float64(fp)
	m.Scores["true_negatives"] = float64(tn)
	m.Scores["false_negatives"] = float64(fn)
	m.Scores["accuracy"] = ratio(tp+tn, m.Evaluated)
	m.Scores["precision"] = ratio(tp, tp+fp)
	m.Scores["recall"] = ratio(tp, tp+fn)

	p, r := m.Scores["precision"], m.Scores["recall"]
	if p+r > 0 {
		m.Scores["f1"] = 2 * p * r / (p + r)
	} else {
		m.Scores["f1"] = 0
	}

	return m, nil
}

func parseBinary(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "positive", "y":
		return true, true
	case "no", "negative", "n":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return b, err == nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
