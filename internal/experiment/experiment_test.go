package experiment_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/verdict/internal/classifier"
	"github.com/JaimeStill/verdict/internal/experiment"
	"github.com/JaimeStill/verdict/internal/ingest"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `
name: nightly-phishing
source:
  name: claims
  path: data/claims.csv
  id_columns: [case_id, channel]
classifier:
  provider: anthropic
  model: claude-sonnet-4-5
  temperature: 0
  parameters:
    domain: finance
engine:
  commit_interval: 25
  concurrency: 4
  item_timeout: 45s
evaluation:
  aggregator: binary
`)

	e, err := experiment.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly-phishing", e.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "claims.csv"), e.Source.Path)
	assert.Equal(t, ingest.FormatCSV, e.Source.Format)
	assert.Equal(t, []string{"case_id", "channel"}, e.Source.IDColumns)
	assert.Equal(t, "text", e.Source.TextColumn)

	assert.Equal(t, classifier.ProviderAnthropic, e.Classifier.Provider)
	require.NotNil(t, e.Classifier.Temperature)
	assert.Zero(t, *e.Classifier.Temperature)
	assert.Equal(t, "finance", e.Classifier.Parameters["domain"])
	assert.Equal(t, classifier.DefaultPromptTemplate, e.Classifier.PromptTemplate)

	assert.Equal(t, 25, e.Engine.CommitInterval)
	assert.Equal(t, 4, e.Engine.Concurrency)
	assert.Equal(t, "45s", e.Engine.ItemTimeout)
	assert.Zero(t, e.Engine.PageSize)
	assert.Equal(t, "binary", e.Evaluation.Aggregator)
}

func TestLoadDefaultsNameFromSource(t *testing.T) {
	e, err := experiment.Load(write(t, `
source:
  name: msgs
  path: /data/msgs.jsonl
classifier:
  provider: keyword
  parameters:
    keywords: [urgent]
`))
	require.NoError(t, err)
	assert.Equal(t, "msgs", e.Name)
	assert.Equal(t, "/data/msgs.jsonl", e.Source.Path)
	assert.Equal(t, ingest.FormatJSONL, e.Source.Format)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "name: x\nsorce:\n  name: y\n"},
		{"missing source path", "source:\n  name: x\nclassifier:\n  provider: keyword\n"},
		{"bad provider", "source:\n  name: x\n  path: a.csv\nclassifier:\n  provider: bard\n  model: m\n"},
		{"malformed", "source: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := experiment.Load(write(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := experiment.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
