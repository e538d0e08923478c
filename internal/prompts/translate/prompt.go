package translate

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

// SystemPrompt builds the system prompt for page translation.
func SystemPrompt(targetLanguage string) string {
	var buf bytes.Buffer
	data := struct{ TargetLanguage string }{TargetLanguage: targetLanguage}
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return systemPromptTmpl
	}
	return buf.String()
}

// UserPrompt builds the user prompt for translating one page. Context carries
// the tail of the translation produced so far, empty for the first page.
func UserPrompt(targetLanguage, pageText, context string) string {
	var buf bytes.Buffer
	data := struct {
		TargetLanguage string
		PageText       string
		Context        string
	}{TargetLanguage: targetLanguage, PageText: pageText, Context: context}
	if err := userTemplate.Execute(&buf, data); err != nil {
		return userPromptTmpl
	}
	return buf.String()
}

// Prompt keys
const (
	SystemPromptKey = "stages.translate.system"
	UserPromptKey   = "stages.translate.user"
)

// RegisterPrompts registers the translation prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPromptTmpl,
		Description: "Page translation system prompt - translates OCR markdown preserving structure",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Page translation user prompt template",
	})
}
