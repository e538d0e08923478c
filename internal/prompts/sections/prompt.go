package sections

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/papermill/papermill/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").Parse(userPromptTmpl))

// SystemPrompt returns the system prompt for section planning.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt builds the user prompt for planning a paper's blog sections.
func UserPrompt(document string) string {
	var buf bytes.Buffer
	data := struct{ Document string }{Document: document}
	if err := userTemplate.Execute(&buf, data); err != nil {
		return userPromptTmpl
	}
	return buf.String()
}

// Prompt keys
const (
	SystemPromptKey = "stages.sections.system"
	UserPromptKey   = "stages.sections.user"
)

// RegisterPrompts registers the section planning prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Section planning system prompt - splits a paper into blog sections as JSON",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Section planning user prompt template",
	})
}
