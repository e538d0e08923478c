package polish

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

// SystemPrompt builds the system prompt for translation polishing.
func SystemPrompt(targetLanguage string) string {
	var buf bytes.Buffer
	data := struct{ TargetLanguage string }{TargetLanguage: targetLanguage}
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return systemPromptTmpl
	}
	return buf.String()
}

// UserPrompt builds the user prompt for polishing one page.
func UserPrompt(pageText, context string) string {
	var buf bytes.Buffer
	data := struct {
		PageText string
		Context  string
	}{PageText: pageText, Context: context}
	if err := userTemplate.Execute(&buf, data); err != nil {
		return userPromptTmpl
	}
	return buf.String()
}

// Prompt keys
const (
	SystemPromptKey = "stages.polish.system"
	UserPromptKey   = "stages.polish.user"
)

// RegisterPrompts registers the polish prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPromptTmpl,
		Description: "Translation polish system prompt - makes machine translation read naturally",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Translation polish user prompt template",
	})
}
