package classifier

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/JaimeStill/verdict/internal/store"
)

// DefaultSystemPrompt asks for the JSON shape ParseVerdict reads.
const DefaultSystemPrompt = `You are a careful classifier. Read the record and decide whether it matches the target condition.
Respond with a single JSON object and nothing else:
{"detected": true|false, "confidence": <number between 0 and 1>, "rationale": "<one or two sentences>"}`

// DefaultPromptTemplate renders the record text as the user message.
const DefaultPromptTemplate = `Record {{.RecordID}}:

{{.Text}}`

// PromptData is the value the prompt template executes against.
type PromptData struct {
	RecordID   string
	SourceName string
	Text       string
	Parameters map[string]any
}

func parseTemplate(text string) (*template.Template, error) {
	return template.New("prompt").Option("missingkey=error").Parse(text)
}

// Render produces the system and user messages for item.
func Render(cfg Config, item store.InputRecord) (system, user string, err error) {
	tmpl, err := parseTemplate(cfg.PromptTemplate)
	if err != nil {
		return "", "", NewPermanent(fmt.Errorf("parse prompt template: %w", err))
	}

	var b strings.Builder
	data := PromptData{
		RecordID:   item.RecordID,
		SourceName: item.SourceName,
		Text:       item.Text,
		Parameters: cfg.Parameters,
	}
	if err := tmpl.Execute(&b, data); err != nil {
		return "", "", NewPermanent(fmt.Errorf("render prompt: %w", err))
	}

	return cfg.SystemPrompt, b.String(), nil
}
