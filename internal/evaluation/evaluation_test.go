package evaluation_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/verdict/internal/evaluation"
	"github.com/JaimeStill/verdict/internal/store"
)

func ptr(s string) *string { return &s }

func outcome(id, truth, label string, errored bool, usage string) store.Outcome {
	o := store.Outcome{RecordID: id, Label: label, ErrorOccurred: errored, AttemptCount: 1}
	if truth != "" {
		o.GroundTruth = ptr(truth)
	}
	if usage != "" {
		o.UsageJSON = ptr(usage)
	}
	return o
}

func TestBinaryAggregate(t *testing.T) {
	outcomes := []store.Outcome{
		outcome("a", "true", "true", false, `{"elapsed_ms": 100, "input_tokens": 10, "output_tokens": 2}`),
		outcome("b", "true", "false", false, `{"elapsed_ms": 300, "input_tokens": 10, "output_tokens": 2}`),
		outcome("c", "false", "true", false, ""),
		outcome("d", "false", "false", false, ""),
		outcome("e", "yes", "true", false, ""),
		outcome("f", "true", "", true, ""),
		outcome("g", "", "true", false, ""),
		outcome("h", "maybe", "true", false, ""),
	}

	m, err := evaluation.Binary{}.Aggregate(outcomes)
	require.NoError(t, err)

	assert.Equal(t, "binary", m.Aggregator)
	assert.Equal(t, 8, m.Total)
	assert.Equal(t, 1, m.Errored)
	assert.Equal(t, 5, m.Evaluated)

	// tp=2 (a, e) fp=1 (c) fn=1 (b) tn=1 (d)
	assert.InDelta(t, 3.0/5.0, m.Scores["accuracy"], 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Scores["precision"], 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Scores["recall"], 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Scores["f1"], 1e-9)

	assert.InDelta(t, 200.0, m.Latency.MeanMS, 1e-9)
	assert.Equal(t, int64(400), m.Latency.TotalMS)
	assert.Equal(t, int64(20), m.Tokens.Input)
	assert.Equal(t, int64(4), m.Tokens.Output)
}

func TestBinaryAggregateEmpty(t *testing.T) {
	m, err := evaluation.Binary{}.Aggregate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Total)
	assert.Zero(t, m.Scores["accuracy"])
	assert.Zero(t, m.Scores["f1"])
}

func TestAggregateIsDeterministic(t *testing.T) {
	outcomes := []store.Outcome{
		outcome("a", "true", "true", false, ""),
		outcome("b", "false", "true", false, ""),
	}

	first, err := evaluation.Binary{}.Aggregate(outcomes)
	require.NoError(t, err)
	second, err := evaluation.Binary{}.Aggregate(outcomes)
	require.NoError(t, err)

	a, err := first.JSON()
	require.NoError(t, err)
	b, err := second.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, a, b)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(a), &decoded))
	assert.Contains(t, decoded, "scores")
}

func TestAggregateRejectsBadUsage(t *testing.T) {
	_, err := evaluation.Binary{}.Aggregate([]store.Outcome{outcome("a", "true", "true", false, "{")})
	assert.Error(t, err)
}

func TestLabelAggregate(t *testing.T) {
	outcomes := []store.Outcome{
		outcome("a", "spam", "spam", false, ""),
		outcome("b", "spam", "ham", false, ""),
		outcome("c", "Ham", "ham", false, ""),
		outcome("d", "ham", "", true, ""),
	}

	m, err := evaluation.Label{}.Aggregate(outcomes)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Evaluated)
	assert.InDelta(t, 2.0/3.0, m.Scores["accuracy"], 1e-9)
	assert.InDelta(t, 0.5, m.Scores["recall:spam"], 1e-9)
	assert.InDelta(t, 1.0, m.Scores["recall:ham"], 1e-9)
}

func TestForName(t *testing.T) {
	a, err := evaluation.ForName("")
	require.NoError(t, err)
	assert.Equal(t, "binary", a.Name())

	a, err = evaluation.ForName("label")
	require.NoError(t, err)
	assert.Equal(t, "label", a.Name())

	_, err = evaluation.ForName("rouge")
	assert.Error(t, err)
}
