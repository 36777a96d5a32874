package summary

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/openai/openai-go/v2"

	"github.com/vispark/vispark-api/internal/pipeline"
)

const systemPrompt = `You summarize YouTube videos from their transcripts.
Answer with 3 to 7 markdown bullet points ("- " prefix), one key idea per bullet.
Do not add a heading, an introduction or a conclusion.
Ignore sponsor segments, calls to subscribe and other promotional content.`

var userPrompt = template.Must(template.New("summary").Parse(
	`Write the summary in {{.Language}}.
{{if .Title}}Video title: {{.Title}}
{{end}}
Transcript:
{{.Transcript}}`))

type promptData struct {
	Title      string
	Language   string
	Transcript string
}

// languageNames maps the ISO codes the app offers to prompt-friendly names.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ru": "Russian",
	"ar": "Arabic",
	"hi": "Hindi",
}

// LanguageName returns the English name of an ISO 639-1 code, or the input
// itself when unknown. An empty code means English.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "English"
	}
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// BuildMessages renders the chat messages for a summary request.
func BuildMessages(req pipeline.SummaryRequest) ([]openai.ChatCompletionMessageParamUnion, error) {
	var buf bytes.Buffer
	err := userPrompt.Execute(&buf, promptData{
		Title:      strings.TrimSpace(req.Title),
		Language:   LanguageName(req.Language),
		Transcript: req.Transcript,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(buf.String()),
	}, nil
}
