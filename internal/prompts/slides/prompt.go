package slides

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/papermill/papermill/internal/prompts"
)

//go:embed system.tmpl
var systemPromptTmpl string

//go:embed user.tmpl
var userPromptTmpl string

var (
	systemTemplate = template.Must(template.New("system").Parse(systemPromptTmpl))
	userTemplate   = template.Must(template.New("user").Parse(userPromptTmpl))
)

// SystemPrompt builds the system prompt for slide generation.
func SystemPrompt(targetLanguage string) string {
	var buf bytes.Buffer
	data := struct{ TargetLanguage string }{TargetLanguage: targetLanguage}
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return systemPromptTmpl
	}
	return buf.String()
}

// UserPromptData carries everything the slides user prompt needs for one
// planned section: the full translated paper, the metadata preamble when a
// sidecar exists, the slides written so far, and the section to present
// next.
type UserPromptData struct {
	Document       string
	PaperContext   string
	PriorSlides    string
	SectionTitle   string
	SectionSummary string
}

// UserPrompt builds the user prompt for the slides of one planned section.
func UserPrompt(data UserPromptData) string {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return userPromptTmpl
	}
	return buf.String()
}

// Prompt keys
const (
	SystemPromptKey = "stages.slides.system"
	UserPromptKey   = "stages.slides.user"
)

// RegisterPrompts registers the slide prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPromptTmpl,
		Description: "Slide generation system prompt - Marp-style deck built section by section",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Slide generation user prompt template",
	})
}
