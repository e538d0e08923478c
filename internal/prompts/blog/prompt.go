package blog

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

// SystemPrompt builds the system prompt for blog section writing.
func SystemPrompt(targetLanguage string) string {
	var buf bytes.Buffer
	data := struct{ TargetLanguage string }{TargetLanguage: targetLanguage}
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return systemPromptTmpl
	}
	return buf.String()
}

// UserPromptData carries everything the blog user prompt needs for one
// section: the full translated paper, the metadata preamble when a sidecar
// exists, the accumulated sections written so far, and the figures assigned
// to this section ("ref - caption" lines).
type UserPromptData struct {
	Document       string
	PaperContext   string
	PriorSections  string
	Images         string
	SectionTitle   string
	SectionSummary string
}

// UserPrompt builds the user prompt for writing one blog section.
func UserPrompt(data UserPromptData) string {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return userPromptTmpl
	}
	return buf.String()
}

// Prompt keys
const (
	SystemPromptKey = "stages.blog.system"
	UserPromptKey   = "stages.blog.user"
)

// RegisterPrompts registers the blog prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPromptTmpl,
		Description: "Blog writing system prompt - explains a paper section by section",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Blog writing user prompt template",
	})
}
